package strand

import "testing"

func TestContinuationPingPong(t *testing.T) {
	steps := make([]string, 0, 4)
	c := callcc(nil, func(c *Continuation) *Continuation {
		if c.Data() != "ping" {
			t.Errorf("first entry data = %v, want ping", c.Data())
		}
		steps = append(steps, "enter")
		c = c.ResumeWith("pong")
		if c.Data() != "again" {
			t.Errorf("second entry data = %v, want again", c.Data())
		}
		steps = append(steps, "re-enter")
		return c
	})
	if !c.Valid() {
		t.Fatalf("fresh continuation not valid")
	}
	c = c.ResumeWith("ping")
	if c.Data() != "pong" {
		t.Fatalf("resume returned data %v, want pong", c.Data())
	}
	steps = append(steps, "back")
	c = c.ResumeWith("again")
	if c.Valid() {
		t.Fatalf("continuation of finished flow still valid")
	}
	steps = append(steps, "done")

	want := []string{"enter", "back", "re-enter", "done"}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", steps, want)
		}
	}
}

func TestContinuationSpent(t *testing.T) {
	c := callcc(nil, func(c *Continuation) *Continuation {
		return c
	})
	spent := c
	c = c.Resume()
	if spent.Valid() {
		t.Fatalf("resumed continuation still valid")
	}
	if c.Valid() {
		t.Fatalf("finished flow still valid")
	}
}

func TestContinuationResumeInvalidPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	var c Continuation
	c.Resume()
}
