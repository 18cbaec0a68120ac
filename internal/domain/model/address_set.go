package model

import (
	"sort"
	"strings"
)

// AddressSet is an immutable, case-insensitive set of watched EVM addresses.
// It is built once at startup and shared read-only across the pipeline.
type AddressSet struct {
	members map[string]struct{}
}

// NewAddressSet normalizes the given addresses to lowercase and builds the set.
// Empty entries are skipped; an empty input yields a valid empty set.
func NewAddressSet(addresses []string) AddressSet {
	members := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			continue
		}
		members[addr] = struct{}{}
	}
	return AddressSet{members: members}
}

// Contains reports membership, ignoring case.
func (s AddressSet) Contains(address string) bool {
	_, ok := s.members[strings.ToLower(strings.TrimSpace(address))]
	return ok
}

// Len returns the number of distinct addresses in the set.
func (s AddressSet) Len() int {
	return len(s.members)
}

// Addresses returns the normalized members in sorted order.
func (s AddressSet) Addresses() []string {
	out := make([]string, 0, len(s.members))
	for addr := range s.members {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Topics returns the members encoded as 32-byte log topic values
// (left-padded with zeros), suitable for eth_getLogs topic filters.
func (s AddressSet) Topics() []string {
	addrs := s.Addresses()
	topics := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		topics = append(topics, AddressToTopic(addr))
	}
	return topics
}

// AddressToTopic left-pads a 20-byte hex address into a 32-byte topic value.
func AddressToTopic(address string) string {
	hexPart := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	return "0x" + strings.Repeat("0", 64-len(hexPart)) + hexPart
}

// TopicToAddress extracts the 20-byte address from a 32-byte topic value.
func TopicToAddress(topic string) string {
	hexPart := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(topic)), "0x")
	if len(hexPart) < 40 {
		return "0x" + hexPart
	}
	return "0x" + hexPart[len(hexPart)-40:]
}
