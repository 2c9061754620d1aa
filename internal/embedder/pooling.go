package embedder

// maskedMean averages the per-token hidden states of a single sequence,
// counting only positions where the attention mask is set.
//
// hidden is flat [seqLen * dim]; mask has length seqLen.
func maskedMean(hidden []float32, mask []int64, dim int) []float32 {
	out := make([]float32, dim)

	var count float32
	for pos, m := range mask {
		if m != 1 {
			continue
		}
		count++
		off := pos * dim
		for d := 0; d < dim; d++ {
			out[d] += hidden[off+d]
		}
	}
	if count == 0 {
		return out
	}

	for d := range out {
		out[d] /= count
	}
	return out
}
