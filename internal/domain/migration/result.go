package migration

// ImportResult is the outcome of importing one entity. Destination connectors
// produce exactly one per input record, correlated by OriginalID.
type ImportResult struct {
	OriginalID string `json:"original_id"`
	Success    bool   `json:"success"`
	NewID      string `json:"new_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Imported builds a successful result
func Imported(originalID, newID string) ImportResult {
	return ImportResult{OriginalID: originalID, Success: true, NewID: newID}
}

// ImportFailed builds a failed result
func ImportFailed(originalID string, err error) ImportResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ImportResult{OriginalID: originalID, Success: false, Error: msg}
}

// Tally counts successes and failures
func Tally(results []ImportResult) EntityCounter {
	var c EntityCounter
	for _, r := range results {
		if r.Success {
			c.Success++
		} else {
			c.Failed++
		}
	}
	return c
}

// CompleteResults returns one result per entity. Results are matched to
// entities by OriginalID in order, so repeated ids each consume their own
// result. Entities left without a result are recorded as failures and surplus
// results are dropped, so success + failed always equals len(entities).
func CompleteResults(entities []Entity, results []ImportResult) []ImportResult {
	pending := make(map[string][]ImportResult, len(results))
	for _, r := range results {
		pending[r.OriginalID] = append(pending[r.OriginalID], r)
	}
	out := make([]ImportResult, 0, len(entities))
	for _, e := range entities {
		id := e.Base().OriginalID
		if queue := pending[id]; len(queue) > 0 {
			out = append(out, queue[0])
			pending[id] = queue[1:]
			continue
		}
		out = append(out, ImportResult{OriginalID: id, Error: "destination returned no result"})
	}
	return out
}

// ApplyNewIDs copies destination ids from successful results onto the
// entities, matching repeated ids in order
func ApplyNewIDs(entities []Entity, results []ImportResult) {
	pending := make(map[string][]ImportResult, len(results))
	for _, r := range results {
		pending[r.OriginalID] = append(pending[r.OriginalID], r)
	}
	for _, e := range entities {
		id := e.Base().OriginalID
		queue := pending[id]
		if len(queue) == 0 {
			continue
		}
		pending[id] = queue[1:]
		if queue[0].Success && queue[0].NewID != "" {
			e.Base().NewID = queue[0].NewID
		}
	}
}
