// Link speed decoding
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package netdev

// LinkSpeed enumerates the decoded link rate a backend driver reports. The
// driver itself does not model link state beyond this; the application
// polls Device.LinkSpeed() as needed.
type LinkSpeed int

const (
	LinkUnknown LinkSpeed = iota
	Link10Mb
	Link100Mb
	Link1Gb
	Link10Gb
)

func (s LinkSpeed) String() string {
	switch s {
	case Link10Mb:
		return "10 Mb/s"
	case Link100Mb:
		return "100 Mb/s"
	case Link1Gb:
		return "1 Gb/s"
	case Link10Gb:
		return "10 Gb/s"
	default:
		return "unknown"
	}
}
