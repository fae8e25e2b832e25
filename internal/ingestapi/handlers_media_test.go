package ingestapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListFilterFromQuery_ParsesEveryField(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/videos?device_id=dev-1&verified_only=true&category=assault&media_type=video&source=live&search=protest&review_status=pending&sort=captured_at&tag=police&tag=curfew&limit=25&offset=50", nil)

	f := listFilterFromQuery(req)

	if f.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", f.DeviceID)
	}
	if !f.VerifiedOnly {
		t.Error("VerifiedOnly = false, want true")
	}
	if f.Category != "assault" {
		t.Errorf("Category = %q, want assault", f.Category)
	}
	if string(f.MediaType) != "video" {
		t.Errorf("MediaType = %q, want video", f.MediaType)
	}
	if f.Source != "live" {
		t.Errorf("Source = %q, want live", f.Source)
	}
	if f.SearchText != "protest" {
		t.Errorf("SearchText = %q, want protest", f.SearchText)
	}
	if f.ReviewStatus != "pending" {
		t.Errorf("ReviewStatus = %q, want pending", f.ReviewStatus)
	}
	if f.Sort != "captured_at" {
		t.Errorf("Sort = %q, want captured_at", f.Sort)
	}
	if len(f.TagsContainAll) != 2 || f.TagsContainAll[0] != "police" || f.TagsContainAll[1] != "curfew" {
		t.Errorf("TagsContainAll = %v, want [police curfew]", f.TagsContainAll)
	}
	if f.Limit != 25 {
		t.Errorf("Limit = %d, want 25", f.Limit)
	}
	if f.Offset != 50 {
		t.Errorf("Offset = %d, want 50", f.Offset)
	}
}

func TestListFilterFromQuery_DefaultsOnEmptyQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)

	f := listFilterFromQuery(req)

	if f.DeviceID != "" || f.VerifiedOnly || f.Limit != 0 || f.Offset != 0 {
		t.Errorf("expected zero-value filter on empty query, got %+v", f)
	}
	if f.TagsContainAll != nil {
		t.Errorf("TagsContainAll = %v, want nil when no tag params present", f.TagsContainAll)
	}
}
