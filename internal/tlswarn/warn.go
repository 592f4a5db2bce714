// Package tlswarn emits a single warning when a client connection is made
// with TLS certificate verification disabled. Every instance serves a
// self-signed certificate, so local clients skip verification; the warning
// reminds operators that this setup must never leave the test machine.
package tlswarn

import (
	"log"
	"sync"
)

var once sync.Once

// LogInsecure logs the insecure-TLS warning exactly once per process, no
// matter how many verification-free connections are opened.
func LogInsecure() {
	once.Do(func() {
		log.Print("[TLS] WARNING: certificate verification is disabled; trusting the instance's self-signed certificate. Local test use only.")
	})
}
