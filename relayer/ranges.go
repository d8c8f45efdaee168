package relayer

type BlockRange struct {
	From uint64
	To   uint64
}

// SplitBlockRange splits [from, to] into consecutive ranges of at most maxSize blocks.
func SplitBlockRange(from, to, maxSize uint64) []BlockRange {
	ranges := make([]BlockRange, 0, 4)
	if maxSize == 0 {
		return ranges
	}
	for from <= to {
		end := from + maxSize - 1
		if end > to || end < from {
			end = to
		}
		ranges = append(ranges, BlockRange{From: from, To: end})
		if end == to {
			break
		}
		from = end + 1
	}
	return ranges
}
