// Package sync reconciles the file-authored content tree with the
// relational store.
//
// Overview
//
// The engine reads article entries through a content.Reader and writes them
// through the repository layer (internal/db). The filesystem is the source
// of truth; the database is a derived projection that is safe to rebuild.
//
// Architecture
//
//	content/
//	     ├── articles/<slug>/index.md   → content.Entry
//	     ├── categories/<slug>.yaml     → content.Category
//	     └── authors/<slug>.yaml        → content.Author
//	                                          ↓
//	                                        Engine
//	                                          ↓
//	                                     SQLite (inkpot.db)
//
// Usage
//
//	database, err := db.Open(".inkpot/inkpot.db", db.Options{})
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//
//	engine := sync.New(database, content.NewDirReader("content"), nil)
//
//	// Full sync
//	res, err := engine.SyncAll(ctx)
//
//	// Single entry (used by the watcher)
//	ok := engine.SyncOne(ctx, "hello-world")
//
//	// Entry directory deleted
//	ok = engine.RemoveBySlug(ctx, "hello-world")
//
// Idempotence
//
// Every entry is diffed against its stored row. Only changed columns are
// written, author and tag links are replaced only when the resolved set
// differs, and an identical entry causes no write at all. Running SyncAll
// twice without content changes reports zero creates and zero updates.
//
// Error Handling
//
// A bad entry never aborts a batch: its failure is recorded in
// Result.Errors as "<slug>: <message>" and the next entry is processed.
// Unresolved category or author references are soft failures. The article
// is written without that relation and a warning is recorded. Only a
// datastore-level failure (closed pool, unreadable file) aborts SyncAll
// with an error.
//
// Concurrency
//
// Writes for the same slug are serialized by a per-slug lock shared by
// SyncAll, SyncOne and RemoveBySlug. Different slugs proceed concurrently,
// and SyncAll can fan out over Config.Workers goroutines. Cancelling the
// context stops SyncAll before the next entry; entries already committed
// stay committed and the result is marked Cancelled.
package sync
