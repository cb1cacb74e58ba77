// User-space packet I/O driver CLI
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import "testing"

func TestValidPCIAddr(t *testing.T) {
	for _, tt := range []struct {
		addr string
		ok   bool
	}{
		{"0000:03:00.0", true},
		{"0000:af:1f.7", true},
		{"0000:AF:1F.7", true},
		{"03:00.0", false},
		{"0000:03:00", false},
		{"0000-03-00.0", false},
		{"0000:03:00.x", false},
		{"", false},
	} {
		if got := validPCIAddr(tt.addr); got != tt.ok {
			t.Errorf("validPCIAddr(%q) = %v, want %v", tt.addr, got, tt.ok)
		}
	}
}

func TestTemplateFrame(t *testing.T) {
	frame, err := templateFrame()
	if err != nil {
		t.Fatal(err)
	}

	if len(frame) < 60 {
		t.Errorf("template frame is %d bytes, below the Ethernet minimum", len(frame))
	}

	// Destination MAC leads the frame; EtherType IPv4 follows the
	// address fields.
	if frame[0] != 0x02 || frame[5] != 0x02 {
		t.Errorf("unexpected destination MAC % x", frame[0:6])
	}
	if frame[12] != 0x08 || frame[13] != 0x00 {
		t.Errorf("EtherType % x", frame[12:14])
	}
}
