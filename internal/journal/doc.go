// Package journal records broker sessions and inbound messages in SQLite.
//
// Each successful connect starts a session identified by a random UUID
// (github.com/google/uuid); every message dispatched during that session is
// stored against it with its raw payload. The journal is optional and off by
// default. Old entries are pruned by age with Prune, which the run command
// calls at startup with database.retention.
//
// The schema lives in the top-level migrations package.
package journal
