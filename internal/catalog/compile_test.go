package catalog

import (
	"net/url"
	"reflect"
	"testing"
)

func baseState() QueryState {
	return QueryState{Page: 1, PageSize: 20}
}

func TestCompile_EmptyStateUsesListing(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.Filters = table.Defaults()

	req := Compile(s, table)
	if req.Endpoint != Listing {
		t.Errorf("Endpoint = %v, want listing", req.Endpoint)
	}
	want := url.Values{"page": {"1"}, "limit": {"20"}}
	if !reflect.DeepEqual(req.Query, want) {
		t.Errorf("Query = %v, want %v", req.Query, want)
	}
}

func TestCompile_SetFilterRepeatsParamInSelectionOrder(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.Filters = Filters{"shape": SetOf("Round", "Oval")}

	req := Compile(s, table)
	if req.Endpoint != Search {
		t.Errorf("Endpoint = %v, want search", req.Endpoint)
	}
	if got := req.Query["shape"]; !reflect.DeepEqual(got, []string{"Round", "Oval"}) {
		t.Errorf("shape = %v, want [Round Oval]", got)
	}
	if enc := req.Query.Encode(); enc != "limit=20&page=1&shape=Round&shape=Oval" {
		t.Errorf("Encode = %q", enc)
	}
}

func TestCompile_SearchTermAloneSwitchesEndpoint(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.SearchTerm = "  ruby  "

	req := Compile(s, table)
	if req.Endpoint != Search {
		t.Errorf("Endpoint = %v, want search", req.Endpoint)
	}
	if got := req.Query.Get("searchTerm"); got != "ruby" {
		t.Errorf("searchTerm = %q, want ruby", got)
	}

	s.SearchTerm = "   "
	if req := Compile(s, table); req.Endpoint != Listing || req.Query.Has("searchTerm") {
		t.Errorf("blank search term: endpoint = %v, query = %v", req.Endpoint, req.Query)
	}
}

func TestCompile_EndpointChoice(t *testing.T) {
	table := mustTable(t)
	tests := []struct {
		name    string
		filters Filters
		term    string
		want    Endpoint
	}{
		{"nothing", nil, "", Listing},
		{"empty set", Filters{"shape": SetOf()}, "", Listing},
		{"default range", Filters{"carat": RangeOf(0, 10)}, "", Listing},
		{"narrowed range", Filters{"carat": RangeOf(1, 10)}, "", Search},
		{"flag off", Filters{"certified": Flag(false)}, "", Listing},
		{"flag on", Filters{"certified": Flag(true)}, "", Search},
		{"unknown key only", Filters{"cut": SetOf("Ideal")}, "", Listing},
		{"wrong kind", Filters{"shape": Flag(true)}, "", Listing},
		{"term", nil, "emerald", Search},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseState()
			s.Filters = tt.filters
			s.SearchTerm = tt.term
			if got := ChooseEndpoint(s, table); got != tt.want {
				t.Errorf("ChooseEndpoint = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_RemapsUIKeyToAPIParam(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.Filters = Filters{"type": SetOf("Sapphire")}

	req := Compile(s, table)
	if req.Query.Has("type") {
		t.Error("UI key \"type\" leaked into the query")
	}
	if got := req.Query.Get("stoneType"); got != "Sapphire" {
		t.Errorf("stoneType = %q, want Sapphire", got)
	}
}

func TestCompile_RangeEmitsBounds(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.Filters = Filters{"carat": RangeOf(0.5, 2.25)}

	req := Compile(s, table)
	if got := req.Query.Get("caratMin"); got != "0.5" {
		t.Errorf("caratMin = %q, want 0.5", got)
	}
	if got := req.Query.Get("caratMax"); got != "2.25" {
		t.Errorf("caratMax = %q, want 2.25", got)
	}
}

func TestCompile_ValueMappingAndOptions(t *testing.T) {
	table, err := NewFilterTable([]FilterSpec{{
		Key:     "shape",
		Options: []string{"round", "oval"},
		Values:  map[string]string{"round": "Round", "oval": "Oval"},
	}}, nil)
	if err != nil {
		t.Fatalf("NewFilterTable: %v", err)
	}
	s := baseState()
	s.Filters = Filters{"shape": SetOf("oval", "heart", "round", " ")}

	req := Compile(s, table)
	if got := req.Query["shape"]; !reflect.DeepEqual(got, []string{"Oval", "Round"}) {
		t.Errorf("shape = %v, want [Oval Round]", got)
	}
}

func TestCompile_OnlyOptionsOutsideListStaysOnListing(t *testing.T) {
	table, err := NewFilterTable([]FilterSpec{{Key: "shape", Options: []string{"Oval"}}}, nil)
	if err != nil {
		t.Fatalf("NewFilterTable: %v", err)
	}
	s := baseState()
	s.Filters = Filters{"shape": SetOf("Heart")}
	if req := Compile(s, table); req.Endpoint != Listing {
		t.Errorf("Endpoint = %v, want listing", req.Endpoint)
	}
}

func TestCompile_Sort(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.SortBy = "price"
	s.SortOrder = SortDesc

	req := Compile(s, table)
	if req.Query.Get("sortBy") != "price" || req.Query.Get("sortOrder") != "desc" {
		t.Errorf("sort params = %v", req.Query)
	}

	s.SortOrder = "sideways"
	if got := Compile(s, table).Query.Get("sortOrder"); got != "asc" {
		t.Errorf("invalid order compiled to %q, want asc", got)
	}

	s.SortBy = ""
	if q := Compile(s, table).Query; q.Has("sortBy") || q.Has("sortOrder") {
		t.Errorf("empty sortBy still emitted sort params: %v", q)
	}
}

func TestCompile_IsPure(t *testing.T) {
	table := mustTable(t)
	s := baseState()
	s.Page = 3
	s.SearchTerm = "blue"
	s.Filters = Filters{
		"shape":     SetOf("Oval", "Pear"),
		"carat":     RangeOf(1, 3),
		"certified": Flag(true),
		"type":      SetOf("Sapphire"),
	}

	first := Compile(s, table)
	for i := 0; i < 5; i++ {
		again := Compile(s, table)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Compile is not deterministic: %v vs %v", first, again)
		}
	}
	if first.Page != 3 || first.PageSize != 20 {
		t.Errorf("Page/PageSize = %d/%d", first.Page, first.PageSize)
	}
}

func TestEndpoint_MarshalText(t *testing.T) {
	b, _ := Search.MarshalText()
	if string(b) != "search" {
		t.Errorf("Search = %q", b)
	}
	b, _ = Listing.MarshalText()
	if string(b) != "listing" {
		t.Errorf("Listing = %q", b)
	}
}
