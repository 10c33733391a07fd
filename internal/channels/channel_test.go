package channels

import "testing"

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventText, "text"},
		{EventCommand, "command"},
		{EventSelection, "selection"},
		{EventKind(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestMessageRef(t *testing.T) {
	if !(MessageRef{}).IsZero() {
		t.Error("empty ref should be zero")
	}
	if !(MessageRef{ChatID: "1"}).IsZero() {
		t.Error("ref without message id should be zero")
	}

	ref := MessageRef{ChatID: "-100", MessageID: "7"}
	if ref.IsZero() {
		t.Error("complete ref should not be zero")
	}
	if ref.String() != "-100/7" {
		t.Errorf("unexpected String(): %q", ref.String())
	}
}

func TestEventOrigin(t *testing.T) {
	ev := &Event{ChatID: "100"}
	if !ev.Origin().IsZero() {
		t.Error("event without message id should have no origin")
	}

	ev.MessageID = "5"
	if got := ev.Origin(); got != (MessageRef{ChatID: "100", MessageID: "5"}) {
		t.Errorf("unexpected Origin(): %+v", got)
	}
}
