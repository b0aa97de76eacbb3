// Copyright (c) 2026 Kiscz, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package mc

// Result is the outcome code carried on a reply.
type Result uint8

// Reply result codes.
const (
	ResultUnknown Result = iota
	ResultOK
	ResultStored
	ResultNotStored
	ResultFound
	ResultNotFound
	ResultDeleted

	// Error results. Everything at ResultLocalError and beyond reports an
	// error outcome.
	ResultLocalError
	ResultRemoteError
	ResultConnectError
	ResultTimeout
	ResultBusy
	ResultTryAgain
)

var resultToName = map[Result]string{
	ResultUnknown:      "unknown",
	ResultOK:           "ok",
	ResultStored:       "stored",
	ResultNotStored:    "not_stored",
	ResultFound:        "found",
	ResultNotFound:     "not_found",
	ResultDeleted:      "deleted",
	ResultLocalError:   "local_error",
	ResultRemoteError:  "remote_error",
	ResultConnectError: "connect_error",
	ResultTimeout:      "timeout",
	ResultBusy:         "busy",
	ResultTryAgain:     "try_again",
}

func (r Result) String() string {
	if name, ok := resultToName[r]; ok {
		return name
	}
	return "unknown"
}

// IsError reports whether the result is an error outcome.
func (r Result) IsError() bool {
	return r >= ResultLocalError
}
