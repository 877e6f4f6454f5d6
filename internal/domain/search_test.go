package domain

import "testing"

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("sku-1")
	b := PointID("sku-1")
	if a != b {
		t.Errorf("same external_id must map to the same point: %s != %s", a, b)
	}

	c := PointID("sku-2")
	if a == c {
		t.Error("different external_ids must map to different points")
	}
}

func TestVectorHit_ProductID(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantID  string
		wantOK  bool
	}{
		{"present", map[string]any{PayloadProductID: "sku-1"}, "sku-1", true},
		{"absent", map[string]any{"other": "x"}, "", false},
		{"nil payload", nil, "", false},
		{"empty value", map[string]any{PayloadProductID: ""}, "", false},
		{"wrong type", map[string]any{PayloadProductID: 42}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := VectorHit{Payload: tt.payload}
			id, ok := h.ProductID()
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
