// Package base provides the small building blocks shared by every engine
// component: a process-wide identity counter service, the old-id remap table
// used to re-identify objects after a save/load cycle, and a prioritized
// event (observer) implementation.
package base
