package checksum

import (
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestETag(t *testing.T) {
	got := ETag([]byte("abc"))
	if got != `"`+Sum([]byte("abc"))+`"` {
		t.Errorf("ETag = %s", got)
	}
}

func TestSumReaderMatchesSum(t *testing.T) {
	got, err := SumReader(strings.NewReader("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if got != Sum([]byte("abc")) {
		t.Errorf("SumReader = %s, want %s", got, Sum([]byte("abc")))
	}
}
