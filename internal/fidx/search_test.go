package fidx_test

import (
	"errors"
	"testing"

	"fidx/internal/fidx"
	"fidx/internal/search"
)

func TestIndexService_Search(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/docs/quarterly-report.txt", 10)
	f.fsmgr.AddFile("/docs/budget.txt", 10)
	f.fsmgr.AddFile("/pics/report-cover.png", 10)
	f.fsmgr.AddFile("/pics/budget-chart.png", 10)
	for _, root := range []string{"/docs", "/pics"} {
		if _, err := f.svc.Scan(f.resolve(t, root), fidx.ScanConfig{}); err != nil {
			t.Fatalf("Scan(%s) error = %v", root, err)
		}
	}

	paths := func(resp *search.Response) map[string]bool {
		out := map[string]bool{}
		for _, r := range resp.Results {
			out[r.File.Path] = true
		}
		return out
	}

	t.Run("AND requires every keyword", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{"report", "cover"}, Operator: "AND"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 1 || !paths(resp)["/pics/report-cover.png"] {
			t.Errorf("Search(report AND cover) = %v (total %d)", paths(resp), resp.Total)
		}
	})

	t.Run("OR accepts any keyword", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{"report", "budget"}, Operator: "or"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 4 {
			t.Errorf("Total = %d, want 4", resp.Total)
		}
	})

	t.Run("type filter", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{"budget"}, Operator: "AND", TypeFilter: "image"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 1 || !paths(resp)["/pics/budget-chart.png"] {
			t.Errorf("Search(budget, image) = %v", paths(resp))
		}
	})

	t.Run("matches tags and attaches them", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{"reports"}, Operator: "AND"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 2 {
			t.Errorf("Total = %d, want 2", resp.Total)
		}
		for _, r := range resp.Results {
			found := false
			for _, tag := range r.Tags {
				found = found || tag.Name == "reports"
			}
			if !found {
				t.Errorf("%s result lacks its reports tag", r.File.Path)
			}
		}
	})

	t.Run("paginates with the full total", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{"report", "budget"}, Operator: "OR", Limit: 3, Offset: 2})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 4 || len(resp.Results) != 2 {
			t.Errorf("Total = %d, len = %d, want 4, 2", resp.Total, len(resp.Results))
		}
	})

	t.Run("keywords are literal", func(t *testing.T) {
		resp, err := f.svc.Search(search.Request{Keywords: []string{`budget" OR "report`}, Operator: "AND"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Total != 0 {
			t.Errorf("Total = %d, want 0 for an injected operator", resp.Total)
		}
	})

	t.Run("invalid requests fail before querying", func(t *testing.T) {
		tests := []struct {
			name string
			req  search.Request
			want error
		}{
			{"operator", search.Request{Keywords: []string{"x"}, Operator: "XOR"}, search.ErrInvalidOperator},
			{"no keywords", search.Request{Keywords: []string{" "}, Operator: "AND"}, search.ErrNoKeywords},
			{"file type", search.Request{Keywords: []string{"x"}, Operator: "AND", TypeFilter: "spreadsheet"}, search.ErrInvalidFileType},
			{"offset", search.Request{Keywords: []string{"x"}, Operator: "AND", Offset: -1}, search.ErrInvalidPagination},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.svc.Search(tt.req); !errors.Is(err, tt.want) {
					t.Errorf("Search() error = %v, want %v", err, tt.want)
				}
			})
		}
	})
}
