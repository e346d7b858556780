package handlers

import "testing"

func TestUploadBufferSizeHeuristic(t *testing.T) {
	const (
		kib4 = 4 * 1024
		mib4 = 4 * 1024 * 1024
		mib8 = 8 * 1024 * 1024
	)
	cases := []struct {
		dataLen int64
		want    int
	}{
		// Even a tiny paste gets a 4MiB buffer: max(data_len/8, 4MiB)
		// floors the pre-clamp value at 4MiB before lo=data_len is
		// ever considered, so lo can raise the floor but never lower it.
		{dataLen: 1024, want: mib4},
		{dataLen: mib4, want: mib4},
		{dataLen: mib4 * 40, want: mib8}, // dataLen/8 exceeds 8MiB, clamped down
		{dataLen: mib4 * 16, want: mib8}, // dataLen/8 == 8MiB exactly
	}
	for _, tc := range cases {
		got := uploadBufferSize(tc.dataLen)
		if got != tc.want {
			t.Errorf("uploadBufferSize(%d) = %d, want %d", tc.dataLen, got, tc.want)
		}
		if got%kib4 != 0 && tc.dataLen >= mib4 {
			t.Errorf("uploadBufferSize(%d) = %d is not 4KiB-aligned", tc.dataLen, got)
		}
	}
}
