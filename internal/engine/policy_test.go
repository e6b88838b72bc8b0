package engine

import "testing"

func TestHasDiverged(t *testing.T) {
	tests := []struct {
		name       string
		localHash  string
		remoteHash string
		want       bool
	}{
		{
			name:       "same hash",
			localHash:  "abc123",
			remoteHash: "abc123",
			want:       false,
		},
		{
			name:       "different hash",
			localHash:  "abc123",
			remoteHash: "def456",
			want:       true,
		},
		{
			name:       "remote hash unknown",
			localHash:  "abc123",
			remoteHash: "",
			want:       true,
		},
		{
			name:       "both empty",
			localHash:  "",
			remoteHash: "",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasDiverged(tt.localHash, tt.remoteHash); got != tt.want {
				t.Errorf("HasDiverged(%q, %q) = %v, want %v",
					tt.localHash, tt.remoteHash, got, tt.want)
			}
		})
	}
}

func TestPreferLonger(t *testing.T) {
	tests := []struct {
		name   string
		local  string
		remote string
		want   string
	}{
		{
			name:   "remote longer wins",
			local:  "# Plan\n",
			remote: "# Plan\n\nwith much more detail\n",
			want:   "# Plan\n\nwith much more detail\n",
		},
		{
			name:   "local longer wins",
			local:  "# Plan\n\nlocal edits everywhere\n",
			remote: "# Plan\n",
			want:   "# Plan\n\nlocal edits everywhere\n",
		},
		{
			name:   "tie keeps local",
			local:  "aaaa",
			remote: "bbbb",
			want:   "aaaa",
		},
	}

	var policy ConflictPolicy = PreferLonger{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Resolve(tt.local, tt.remote); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
