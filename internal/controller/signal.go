/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import "sync"

// Signal is a payload-free broadcast wake-up.
//
// Waiters take the current channel from Changed and block on it; Raise closes
// that channel, waking every holder at once, and installs a fresh one. Any
// number of raises between two calls to Changed collapse into one closed
// channel, and raising with nobody waiting does nothing observable.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal returns a Signal that has not been raised.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Changed returns a channel closed by the next Raise.
func (s *Signal) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Raise wakes everyone holding a channel from Changed.
func (s *Signal) Raise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
