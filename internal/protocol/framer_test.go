package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestFramer_Feed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "single object",
			chunks: []string{`{"device_id":1}`},
			want:   []string{`{"device_id":1}`},
		},
		{
			name:   "two objects in one read",
			chunks: []string{`{"device_id":1}{"device_id":2}`},
			want:   []string{`{"device_id":1}`, `{"device_id":2}`},
		},
		{
			name:   "newline separated",
			chunks: []string{"{\"a\":1}\n{\"b\":2}\n"},
			want:   []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:   "split across reads",
			chunks: []string{`{"device_id":1,"str`, `eak":{"pulsation_average":`, `120}}`},
			want:   []string{`{"device_id":1,"streak":{"pulsation_average":120}}`},
		},
		{
			name:   "braces inside strings",
			chunks: []string{`{"system":{"so":"we}ird{"}}`},
			want:   []string{`{"system":{"so":"we}ird{"}}`},
		},
		{
			name:   "escaped quote inside string",
			chunks: []string{`{"so":"say \"}\" ok"}`},
			want:   []string{`{"so":"say \"}\" ok"}`},
		},
		{
			name:   "escaped backslash before closing quote",
			chunks: []string{`{"so":"c:\\"}{"x":1}`},
			want:   []string{`{"so":"c:\\"}`, `{"x":1}`},
		},
		{
			name:   "junk between objects is skipped",
			chunks: []string{`garbage {"a":1} more ]] {"b":2}`},
			want:   []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:   "incomplete object yields nothing",
			chunks: []string{`{"device_id":1`},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(1024)
			var got []string
			for _, c := range tt.chunks {
				msgs, err := f.Feed([]byte(c))
				if err != nil {
					t.Fatalf("Feed(%q) error = %v", c, err)
				}
				for _, m := range msgs {
					got = append(got, string(m))
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("message %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFramer_PendingCompacts(t *testing.T) {
	f := NewFramer(1024)

	if _, err := f.Feed([]byte(`{"a":1} {"b":`)); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if got := f.Pending(); got != len(`{"b":`) {
		t.Errorf("Pending() = %d, want %d", got, len(`{"b":`))
	}

	msgs, _ := f.Feed([]byte(`2}`))
	if len(msgs) != 1 || string(msgs[0]) != `{"b":2}` {
		t.Errorf("msgs = %q, want [{\"b\":2}]", msgs)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d after completion, want 0", f.Pending())
	}
}

func TestFramer_Oversized(t *testing.T) {
	f := NewFramer(16)

	_, err := f.Feed([]byte(`{"device_id":"` + strings.Repeat("x", 32)))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("Feed() error = %v, want ErrMessageTooLarge", err)
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d after overflow, want 0", f.Pending())
	}

	// Framing recovers for the next object
	msgs, err := f.Feed([]byte(`"} {"a":1}`))
	if err != nil {
		t.Fatalf("Feed() after overflow error = %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != `{"a":1}` {
		t.Errorf("msgs = %q, want [{\"a\":1}]", msgs)
	}
}

func TestFramer_MessagesAreCopies(t *testing.T) {
	f := NewFramer(1024)

	first, _ := f.Feed([]byte(`{"a":1}`))
	_, _ = f.Feed([]byte(`{"b":2}`))

	if string(first[0]) != `{"a":1}` {
		t.Errorf("first message changed to %q after later Feed", first[0])
	}
}

func TestFramer_TruncatedObjectAbandoned(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "next read opens a new message",
			chunks: []string{`{"device_id":1,"streak":{"pulsation_average":1`, `{"device_id":2}`, `{"device_id":3}`},
			want:   []string{`{"device_id":2}`, `{"device_id":3}`},
		},
		{
			name:   "same read",
			chunks: []string{`{"device_id":1,"session":{"pulsations_total":5{"device_id":2}`},
			want:   []string{`{"device_id":2}`},
		},
		{
			name:   "truncated after a closed value",
			chunks: []string{`{"device_id":1,"system":{"so":"x"}`, "\n{\"device_id\":2}"},
			want:   []string{`{"device_id":2}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(1024)
			var (
				got       []string
				truncated int
			)
			for _, c := range tt.chunks {
				msgs, err := f.Feed([]byte(c))
				if errors.Is(err, ErrTruncated) {
					truncated++
				} else if err != nil {
					t.Fatalf("Feed(%q) error = %v", c, err)
				}
				for _, m := range msgs {
					got = append(got, string(m))
				}
			}
			if truncated != 1 {
				t.Errorf("ErrTruncated reported %d times, want 1", truncated)
			}
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if f.Pending() != 0 {
				t.Errorf("Pending() = %d, want 0", f.Pending())
			}
		})
	}
}

func TestFramer_NestedValuesAreNotTruncation(t *testing.T) {
	f := NewFramer(1024)

	chunks := []string{`{"device_id":1,"streak":`, `{"pulsation_average":120},"tags":[`, `{"a":1},{"b":2}]}`}
	var got []string
	for _, c := range chunks {
		msgs, err := f.Feed([]byte(c))
		if err != nil {
			t.Fatalf("Feed(%q) error = %v", c, err)
		}
		for _, m := range msgs {
			got = append(got, string(m))
		}
	}

	want := strings.Join(chunks, "")
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %q, want [%q]", got, want)
	}
}
