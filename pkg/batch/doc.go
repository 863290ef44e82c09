// Package batch composes OData $batch requests.
//
// A batch is a single POST carrying several parts. Each part is one of a
// closed set of sub-operations:
//
//   - Changeset: mutating requests applied atomically
//   - Retrieve: a single GET
//   - OutsideUpdate: a single request outside any changeset
//
// A StreamManager hands out these builders and sends the batch. Stream is
// the HTTP implementation; it encodes the parts as multipart/mixed.
// Composer wraps any StreamManager and refuses further parts once the
// batch has been dispatched:
//
//	stream, err := batch.NewStream(httpClient, batch.Request{
//		ServiceRoot:  "https://host/odata",
//		RespondAsync: true,
//	})
//	composer := batch.NewComposer(stream)
//
//	r, _ := composer.AddRetrieve()
//	get, _ := http.NewRequest(http.MethodGet, "People('russell')", nil)
//	_ = r.SetRequest(get)
//
//	resp, err := composer.Dispatch(ctx)
package batch
