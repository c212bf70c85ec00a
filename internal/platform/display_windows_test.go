//go:build windows

package platform

import (
	"reflect"
	"testing"
)

// TestListDisplaysRepeatedly refreshes more often than the runtime allows callbacks
func TestListDisplaysRepeatedly(t *testing.T) {
	first, firstErr := listDisplays()
	for i := 0; i < 2500; i++ {
		regions, err := listDisplays()
		if (err == nil) != (firstErr == nil) {
			t.Fatalf("Call %d: expected error %v, got %v", i, firstErr, err)
		}
		if !reflect.DeepEqual(regions, first) {
			t.Fatalf("Call %d: expected %+v, got %+v", i, first, regions)
		}
	}
}
