package xmlnode

import (
	"strings"
	"testing"
)

const prefixedNotice = `<?xml version="1.0" encoding="UTF-8"?>
<efx:ContractNotice xmlns:efx="http://example.org/eforms" xmlns:cbc="http://example.org/cbc" xmlns:cac="http://example.org/cac">
	<cbc:IssueDate>2025-04-01+02:00</cbc:IssueDate>
	<cac:ProcurementProject>
		<cbc:Name>  Lab equipment maintenance  </cbc:Name>
		<cac:RequestedTenderTotal>
			<cbc:EstimatedOverallContractAmount currencyID="DKK">1234567</cbc:EstimatedOverallContractAmount>
		</cac:RequestedTenderTotal>
	</cac:ProcurementProject>
	<cac:ProcurementProject>
		<cbc:Name>Second project is never reached</cbc:Name>
	</cac:ProcurementProject>
</efx:ContractNotice>`

const unprefixedNotice = `<ContractNotice>
	<IssueDate>2025-04-01</IssueDate>
	<ProcurementProject>
		<Name>Plain notice</Name>
	</ProcurementProject>
</ContractNotice>`

func TestGetPathPrefixTolerance(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		path []string
		want string
	}{
		{
			name: "prefixed elements resolve by local name",
			xml:  prefixedNotice,
			path: []string{"ProcurementProject", "Name"},
			want: "Lab equipment maintenance",
		},
		{
			name: "unprefixed elements resolve the same way",
			xml:  unprefixedNotice,
			path: []string{"ProcurementProject", "Name"},
			want: "Plain notice",
		},
		{
			name: "later siblings are not searched",
			xml:  `<r><Lot><ID>LOT-1</ID></Lot><Lot><Title>only in second</Title></Lot></r>`,
			path: []string{"Lot", "Title"},
			want: "",
		},
		{
			name: "top level field",
			xml:  prefixedNotice,
			path: []string{"IssueDate"},
			want: "2025-04-01+02:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse(strings.NewReader(tt.xml))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			got := root.TextAt(tt.path...)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetPathMissingFieldReturnsNil(t *testing.T) {
	root, err := Parse(strings.NewReader(prefixedNotice))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if n := root.GetPath("ProcurementProject", "DoesNotExist"); n != nil {
		t.Errorf("expected nil node for missing field, got %v", n.Name())
	}
	if got := root.TextAt("No", "Such", "Path"); got != "" {
		t.Errorf("expected empty text for missing path, got %q", got)
	}
}

func TestNilNodeIsSafe(t *testing.T) {
	var n *Node
	if n.GetPath("anything") != nil {
		t.Error("GetPath on nil node should return nil")
	}
	if n.Text() != "" {
		t.Error("Text on nil node should return empty string")
	}
	if n.Attr("currencyID") != "" {
		t.Error("Attr on nil node should return empty string")
	}
	if n.Name() != "" {
		t.Error("Name on nil node should return empty string")
	}
}

func TestAttrMatchesLocalName(t *testing.T) {
	root, err := Parse(strings.NewReader(prefixedNotice))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	amount := root.GetPath("ProcurementProject", "RequestedTenderTotal", "EstimatedOverallContractAmount")
	if amount == nil {
		t.Fatal("expected amount node")
	}
	if got := amount.Attr("currencyID"); got != "DKK" {
		t.Errorf("expected currencyID DKK, got %q", got)
	}
	if got := amount.Attr("missing"); got != "" {
		t.Errorf("expected empty value for missing attribute, got %q", got)
	}
	if got := amount.Text(); got != "1234567" {
		t.Errorf("expected amount text, got %q", got)
	}
}

func TestParseRejectsRootlessInput(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("expected error for empty document")
	}
	if _, err := Parse(strings.NewReader("<!-- only a comment -->")); err == nil {
		t.Error("expected error for document without root element")
	}
	if _, err := Parse(strings.NewReader("<open><unclosed></open>")); err == nil {
		t.Error("expected error for malformed document")
	}
}
