package models

import "testing"

func TestNormalizeInstallDate(t *testing.T) {
	for _, s := range []string{"", "0000-00-00", "N/A", "  ", " 0000-00-00 "} {
		if got := NormalizeInstallDate(s); got != nil {
			t.Errorf("NormalizeInstallDate(%q) = %q, want nil", s, *got)
		}
	}
	if got := NormalizeInstallDate("2024/01/31"); got == nil || *got != "2024/01/31" {
		t.Errorf("NormalizeInstallDate kept value = %v", got)
	}
}
