package corpus

import "math"

// Entry pairs a document with the number of items to draw from it.
type Entry struct {
	Name  string `json:"name"`
	Quota int    `json:"quota"`
}

// ComputeDistribution splits total items across the documents of a corpus in
// proportion to their page count. Corpora with fewer than two documents yield
// no entries.
func ComputeDistribution(corpus string, total int) []Entry {
	return Distribute(Parse(corpus), total)
}

// Distribute assigns quotas to docs. Every document but the last gets
// round(total*weight/sum), at least 1 when total >= len(docs). The last one
// gets the remainder, so quotas always sum to total.
func Distribute(docs []Descriptor, total int) []Entry {
	n := len(docs)
	if n < 2 {
		return nil
	}
	if total < 0 {
		total = 0
	}

	weightSum := 0
	for _, d := range docs {
		weightSum += d.Weight
	}

	entries := make([]Entry, n)
	assigned := 0
	for i, d := range docs[:n-1] {
		var share float64
		if weightSum > 0 {
			share = float64(total) * float64(d.Weight) / float64(weightSum)
		} else {
			share = float64(total) / float64(n)
		}
		quota := int(math.Round(share))
		if quota == 0 && total >= n {
			quota = 1
		}
		entries[i] = Entry{Name: d.Name, Quota: quota}
		assigned += quota
	}

	last := total - assigned
	entries[n-1] = Entry{Name: docs[n-1].Name, Quota: last}
	if last < 0 {
		entries[n-1].Quota = 0
		rebalance(entries[:n-1], -last)
	}
	return entries
}

// rebalance takes excess items back from the largest quotas, preferring later
// documents on ties.
func rebalance(entries []Entry, excess int) {
	for excess > 0 {
		maxIdx := -1
		for i := range entries {
			if entries[i].Quota > 0 && (maxIdx < 0 || entries[i].Quota >= entries[maxIdx].Quota) {
				maxIdx = i
			}
		}
		if maxIdx < 0 {
			return
		}
		entries[maxIdx].Quota--
		excess--
	}
}
