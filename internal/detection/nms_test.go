package detection

import "testing"

func scored(box WorkingBox, score float64, m Method) ScoredCandidate {
	return ScoredCandidate{Candidate: Candidate{Box: box, Area: box.Area(), Method: m}, Score: score}
}

func TestNonMaxSuppress_OverlapCollapses(t *testing.T) {
	low := scored(WorkingBox{0, 0, 100, 100}, 0.2, MethodOtsuInv)
	high := scored(WorkingBox{5, 5, 105, 105}, 0.3, MethodCanny)

	if iou := IoU(low.Box, high.Box); iou <= 0.3 {
		t.Fatalf("fixture IoU %v should exceed 0.3", iou)
	}

	kept := NonMaxSuppress([]ScoredCandidate{low, high}, 0.3, 20)

	if len(kept) != 1 {
		t.Fatalf("got %d candidates, want 1", len(kept))
	}
	if kept[0].Method != MethodCanny {
		t.Errorf("kept %s, want the higher-confidence canny candidate", kept[0].Method)
	}
}

func TestNonMaxSuppress_SmallOverlapSurvives(t *testing.T) {
	a := scored(WorkingBox{0, 0, 100, 100}, 0.3, MethodCanny)
	b := scored(WorkingBox{80, 0, 180, 100}, 0.2, MethodOtsuInv)

	if iou := IoU(a.Box, b.Box); iou >= 0.3 {
		t.Fatalf("fixture IoU %v should be below 0.3", iou)
	}

	kept := NonMaxSuppress([]ScoredCandidate{a, b}, 0.3, 20)

	if len(kept) != 2 {
		t.Fatalf("got %d candidates, want 2", len(kept))
	}
	if kept[0].Score != 0.3 || kept[1].Score != 0.2 {
		t.Errorf("order: got %v, %v", kept[0].Score, kept[1].Score)
	}
}

func TestNonMaxSuppress_MaxKeep(t *testing.T) {
	var cands []ScoredCandidate
	for i := 0; i < 30; i++ {
		x := i * 20
		cands = append(cands, scored(WorkingBox{x, 0, x + 10, 10}, float64(i)/100, MethodAdaptive))
	}

	kept := NonMaxSuppress(cands, 0.3, 20)

	if len(kept) != 20 {
		t.Fatalf("got %d candidates, want 20", len(kept))
	}
	if kept[0].Score != 0.29 {
		t.Errorf("first kept score: got %v, want 0.29", kept[0].Score)
	}
}

func TestNonMaxSuppress_TiesKeepPoolOrder(t *testing.T) {
	first := scored(WorkingBox{0, 0, 50, 50}, 0.1, MethodCanny)
	second := scored(WorkingBox{0, 0, 50, 50}, 0.1, MethodWatershed)

	kept := NonMaxSuppress([]ScoredCandidate{first, second}, 0.3, 20)

	if len(kept) != 1 || kept[0].Method != MethodCanny {
		t.Errorf("tie should keep the earlier candidate, got %+v", kept)
	}
}

func TestNonMaxSuppress_Empty(t *testing.T) {
	if got := NonMaxSuppress(nil, 0.3, 20); len(got) != 0 {
		t.Errorf("got %d, want 0", len(got))
	}
}
