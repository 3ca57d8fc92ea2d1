/*
Package session implements tutorial session persistence orchestration.

The Manager serializes reads and writes of the record kept for each tab, so an
advance can never interleave with a resume running after a navigation. Across
replicas it can additionally hold a distributed lock (see pkg/adapters/redis).
*/
package session
