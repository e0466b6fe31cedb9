// Package argilla is a small client for the Argilla 2.x REST API, covering
// what an annotation upload needs: the current user, workspaces, datasets
// with their fields and questions, and bulk record upserts.
//
// Usage:
//
//	client, err := argilla.New(baseURL, apiKey, argilla.WithTimeout(30*time.Second))
//	me, err := client.Me(ctx)
//	ws, err := client.WorkspaceByName(ctx, "argilla")
//	ds, err := client.DatasetByName(ctx, ws.ID, "movie-reviews")
package argilla
