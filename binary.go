package sio

import jsonparser "github.com/siocore/sio/parser/json"

// Binary marks a byte slice that must travel as a binary attachment.
// Plain []byte values are encoded as base64 text.
type Binary = jsonparser.Binary
