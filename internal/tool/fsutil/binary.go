package fsutil

// BinarySampleSize is how many leading bytes are inspected for NUL bytes.
const BinarySampleSize = 8000

// IsBinaryContent reports whether content looks binary: a NUL byte within the
// first BinarySampleSize bytes. UTF-16 and UTF-32 BOMs mark text.
func IsBinaryContent(content []byte) bool {
	if len(content) >= 2 {
		if (content[0] == 0xFF && content[1] == 0xFE) || (content[0] == 0xFE && content[1] == 0xFF) {
			return false
		}
	}
	if len(content) >= 4 && content[0] == 0x00 && content[1] == 0x00 && content[2] == 0xFE && content[3] == 0xFF {
		return false
	}

	n := min(len(content), BinarySampleSize)
	for i := range n {
		if content[i] == 0 {
			return true
		}
	}
	return false
}
