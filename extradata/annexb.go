package extradata

// FindStartCode returns the offset of the first 3- or 4-byte Annex-B
// start code at or after from, or -1.
func FindStartCode(b []byte, from int) int {
	for i := from; i+3 <= len(b); i++ {
		if b[i] != 0 || b[i+1] != 0 {
			continue
		}
		if b[i+2] == 1 {
			return i
		}
		if i+4 <= len(b) && b[i+2] == 0 && b[i+3] == 1 {
			return i
		}
	}
	return -1
}

// IsAnnexB reports whether the data starts with an Annex-B start code.
func IsAnnexB(b []byte) bool {
	return FindStartCode(b, 0) == 0
}

// SplitAnnexB returns the NAL units of an Annex-B byte stream, without
// their start codes. The returned slices alias b.
func SplitAnnexB(b []byte) [][]byte {
	var nalus [][]byte
	start := FindStartCode(b, 0)
	for start >= 0 {
		payload := start + 3
		if b[start+2] == 0 {
			payload++
		}
		next := FindStartCode(b, payload)
		end := next
		if end < 0 {
			end = len(b)
		}
		if end > payload {
			nalus = append(nalus, b[payload:end])
		}
		start = next
	}
	return nalus
}

// JoinAnnexB prefixes every NAL unit with a 4-byte start code and
// concatenates them.
func JoinAnnexB(nalus [][]byte) []byte {
	size := 0
	for _, nalu := range nalus {
		size += 4 + len(nalu)
	}
	result := make([]byte, 0, size)
	for _, nalu := range nalus {
		result = append(result, 0, 0, 0, 1)
		result = append(result, nalu...)
	}
	return result
}
