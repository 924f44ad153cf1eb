// Package watcher reports changes to the site content definition so the
// search index can be rebuilt.
//
// fsnotify is used when available, with polling as a fallback for
// filesystems that do not deliver events (network mounts, some container
// volumes). Events are debounced so an editor save or a deploy that
// rewrites several files produces a single batch.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, "/srv/site/content")
//
//	for batch := range w.Events() {
//	    // reload content and reindex
//	}
package watcher
