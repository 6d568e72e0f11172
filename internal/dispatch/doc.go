// Package dispatch runs one external tool per family over a bounded worker
// pool and maps every produced artifact back to its family.
//
// Jobs are submitted in ascending family-id order. A stage is complete only
// when every unit has finished; the next stage consumes Result.Jobs().
// Tools that name their own outputs are reconciled by sorting the stage's
// output directory and pairing it with the sorted family ids, after checking
// that the counts agree.
package dispatch
