// internal/orthogroup/table_test.go
package orthogroup

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const fixture = "Orthogroup\tAth.fa\tOsa.fa\n" +
	"OG0000000\ta1, a2\tb1\n" +
	"OG0000001\ta3\t\n" +
	"OG0000002\t\tb2,b3\n" +
	"OG0000003\t\t\n"

func mustParse(t *testing.T, data string) *Table {
	t.Helper()
	tab, err := Parse(strings.NewReader(data), "og.tsv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tab
}

func TestParseHeaderAndRows(t *testing.T) {
	tab := mustParse(t, fixture)
	if diff := cmp.Diff([]string{"Ath.fa", "Osa.fa"}, tab.Species); diff != "" {
		t.Fatalf("species (-want +got):\n%s", diff)
	}
	ids, err := tab.FamilyIDs()
	if err != nil {
		t.Fatalf("FamilyIDs: %v", err)
	}
	want := []string{"OG0000000", "OG0000001", "OG0000002", "OG0000003"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
}

func TestMembersPreservesOrder(t *testing.T) {
	tab := mustParse(t, fixture)
	want := []Membership{
		{Species: "Ath.fa", Genes: []string{"a1", "a2"}},
		{Species: "Osa.fa", Genes: []string{"b1"}},
	}
	if diff := cmp.Diff(want, tab.Members("OG0000000")); diff != "" {
		t.Fatalf("members (-want +got):\n%s", diff)
	}
	if got := tab.Members("OG0000002"); len(got) != 1 || got[0].Species != "Osa.fa" {
		t.Fatalf("empty Ath cell should be skipped, got %+v", got)
	}
	if got := tab.Members("missing"); got != nil {
		t.Fatalf("unknown family should have no members, got %+v", got)
	}
}

func TestIsSingleton(t *testing.T) {
	tab := mustParse(t, "OG\tA\tB\tC\n"+
		"one\tg1\t\t\n"+
		"two\tg1\tg2\t\n"+
		"none\t\t\t\n"+
		"pair\tg1, g2\t\t\n")
	cases := map[string]bool{"one": true, "two": false, "none": true, "pair": false}
	for fam, want := range cases {
		if got := tab.IsSingleton(fam); got != want {
			t.Errorf("IsSingleton(%s) = %v, want %v", fam, got, want)
		}
	}
	if tab.ClassOf("two") != MultiMember || tab.ClassOf("one") != Singleton {
		t.Errorf("ClassOf mismatch")
	}
}

func TestClassify(t *testing.T) {
	tab := mustParse(t, fixture)
	single, multi := tab.Classify()
	if diff := cmp.Diff([]string{"OG0000001", "OG0000003"}, single); diff != "" {
		t.Fatalf("singletons (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"OG0000000", "OG0000002"}, multi); diff != "" {
		t.Fatalf("multi (-want +got):\n%s", diff)
	}
}

func TestDuplicateFamilyIDsAllReported(t *testing.T) {
	tab := mustParse(t, fixture+"OG0000001\ta9\t\nOG0000000\t\tb9\nOG0000000\t\tb8\n")
	_, err := tab.FamilyIDs()
	var dup *DuplicateFamilyIDError
	if !errors.As(err, &dup) {
		t.Fatalf("want DuplicateFamilyIDError, got %v", err)
	}
	if diff := cmp.Diff([]string{"OG0000000", "OG0000001"}, dup.IDs); diff != "" {
		t.Fatalf("dup ids (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "OG0000000, OG0000001") {
		t.Fatalf("message should name every id: %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":        "",
		"no species":   "OG\n",
		"extra cells":  "OG\tA\nf1\tg1\tg2\n",
		"empty family": "OG\tA\n\tg1\n",
	} {
		if _, err := Parse(strings.NewReader(data), "og.tsv"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestShortRowsArePadded(t *testing.T) {
	tab := mustParse(t, "OG\tA\tB\nf1\tg1\n")
	if len(tab.Rows[0].Cells) != 2 || !tab.IsSingleton("f1") {
		t.Fatalf("short row not padded: %+v", tab.Rows[0])
	}
}
