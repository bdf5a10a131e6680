package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPDFsActivity)
	w.RegisterActivity(a.IngestPDFActivity)
	w.RegisterActivity(a.ListPapersWithoutEmbeddingActivity)
	w.RegisterActivity(a.EmbedAbstractsActivity)
	w.RegisterActivity(a.RepairPublicationDatesActivity)
	w.RegisterActivity(a.ReindexPagesActivity)
}
