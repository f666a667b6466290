// Package xlog is a minimal structured-ish logger matching the call shape
// aistore's cmn/nlog uses (Infof/Warningf/Errorf with printf-style args),
// reimplemented here because nlog itself is an in-tree package, not a
// fetchable module.
package xlog

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

func Infof(format string, args ...any) {
	std.Output(2, "I "+fmt.Sprintf(format, args...))
}

func Warningf(format string, args ...any) {
	std.Output(2, "W "+fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	std.Output(2, "E "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	if os.Getenv("MESH_DEBUG") == "" {
		return
	}
	std.Output(2, "D "+fmt.Sprintf(format, args...))
}
