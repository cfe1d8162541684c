// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// SearchResults is the outcome of one content-index query.
//
// Description:
//
//	Either a ranked result set (Documents/Metadata/Distances aligned by
//	index, ascending distance) or an error condition in Error. The vector
//	store never raises past its boundary: backend failures and resolution
//	misses are both expressed as an Error string so they can be returned
//	to the generative model as ordinary tool output.
//
// Thread Safety: SearchResults is constructed per query and never mutated.
type SearchResults struct {
	Documents []string         `json:"documents"`
	Metadata  []map[string]any `json:"metadata"`
	Distances []float64        `json:"distances"`
	Error     string           `json:"error,omitempty"`
}

// EmptyResults builds an empty outcome carrying an error message.
func EmptyResults(errMsg string) SearchResults {
	return SearchResults{
		Documents: []string{},
		Metadata:  []map[string]any{},
		Distances: []float64{},
		Error:     errMsg,
	}
}

// IsEmpty reports whether the outcome carries no documents.
func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}
