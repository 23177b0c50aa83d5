package listfile

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead_NormalisesAndSkipsBlanks(t *testing.T) {
	in := "ＲＬＦＩＲＴＧＳＷ\r\n\n  HLA-A02:01  \n"
	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"RLFIRTGSW", "HLA-A02:01"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWriteReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "peptides.txt")
	items := []string{"AAA", "BBB", "AAA"}
	if err := WriteFile(p, items); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(p)
	if err != nil || !reflect.DeepEqual(got, items) {
		t.Fatalf("round trip: %v %v", got, err)
	}
}
