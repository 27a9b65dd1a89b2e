/*
NAME
  errors.go

DESCRIPTION
  errors.go provides the error values pixfmt returns.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pixfmt

import "errors"

// ErrUnknownSubtype is returned by GetVideoFormat when a MediaType's
// Subtype has no corresponding PixelFormat table entry.
var ErrUnknownSubtype = errors.New("pixfmt: unknown media subtype")
