package throttle

import "testing"

func TestDefaultLimits_MatchDocumentedFloors(t *testing.T) {
	l := DefaultLimits()
	if l.PerSecOverall != 30 {
		t.Errorf("PerSecOverall = %d, want 30", l.PerSecOverall)
	}
	if l.PerSecChat != 1 {
		t.Errorf("PerSecChat = %d, want 1", l.PerSecChat)
	}
	if l.PerMinChat != 20 {
		t.Errorf("PerMinChat = %d, want 20", l.PerMinChat)
	}
	if l.PerMinChannelOrSupergroup != 10 {
		t.Errorf("PerMinChannelOrSupergroup = %d, want 10", l.PerMinChannelOrSupergroup)
	}
	if l.PerMinChannelOrSupergroup >= l.PerMinChat {
		t.Error("channel/supergroup per-minute budget should be narrower than PerMinChat")
	}
}
