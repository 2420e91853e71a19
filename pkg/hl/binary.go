package hl

import (
	"encoding/binary"
	"fmt"
	"os"

	"shiproute/pkg/graph"
)

// Binary container for a built/pruned HubGraph, following the same
// CRC32-trailer, unsafe.Slice zero-copy layout as pkg/graph's CH container
// (and reusing its CRC32Writer/CRC32Reader/WriteUint32Slice/ReadUint32Slice
// helpers directly rather than re-implementing them), but flattening labels
// into a CSR-like (firstOut, hub, cost) triple per direction instead of
// per-node slices of slices.
const (
	hubMagicBytes = "MPHUBLBL"
	hubVersion    = uint32(1)
	hubMaxNodes   = 10_000_000
	hubMaxEntries = 500_000_000
)

type hubFileHeader struct {
	Magic         [8]byte
	Version       uint32
	NumNodes      uint32
	NumFwdEntries uint32
	NumBwdEntries uint32
}

// WriteBinary serializes a HubGraph to path using an atomic temp-file rename,
// matching pkg/graph.WriteBinary's durability pattern.
func WriteBinary(path string, hub *HubGraph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	w := graph.NewCRC32Writer(f)

	fwdFirstOut, fwdHubs, fwdCosts := flattenLabels(hub.Forward)
	bwdFirstOut, bwdHubs, bwdCosts := flattenLabels(hub.Backward)

	hdr := hubFileHeader{
		Version:       hubVersion,
		NumNodes:      uint32(len(hub.Forward)),
		NumFwdEntries: uint32(len(fwdHubs)),
		NumBwdEntries: uint32(len(bwdHubs)),
	}
	copy(hdr.Magic[:], hubMagicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range [][]uint32{fwdFirstOut, fwdHubs, fwdCosts, bwdFirstOut, bwdHubs, bwdCosts} {
		if err := graph.WriteUint32Slice(w, s); err != nil {
			return fmt.Errorf("write label data: %w", err)
		}
	}

	checksum := w.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary deserializes a HubGraph written by WriteBinary.
func ReadBinary(path string) (*HubGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := graph.NewCRC32Reader(f)

	var hdr hubFileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != hubMagicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != hubVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > hubMaxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, hubMaxNodes)
	}
	if hdr.NumFwdEntries > hubMaxEntries || hdr.NumBwdEntries > hubMaxEntries {
		return nil, fmt.Errorf("entry count exceeds limit %d", hubMaxEntries)
	}

	fwdFirstOut, err := graph.ReadUint32Slice(r, int(hdr.NumNodes+1))
	if err != nil {
		return nil, fmt.Errorf("read fwd firstOut: %w", err)
	}
	fwdHubs, err := graph.ReadUint32Slice(r, int(hdr.NumFwdEntries))
	if err != nil {
		return nil, fmt.Errorf("read fwd hubs: %w", err)
	}
	fwdCosts, err := graph.ReadUint32Slice(r, int(hdr.NumFwdEntries))
	if err != nil {
		return nil, fmt.Errorf("read fwd costs: %w", err)
	}
	bwdFirstOut, err := graph.ReadUint32Slice(r, int(hdr.NumNodes+1))
	if err != nil {
		return nil, fmt.Errorf("read bwd firstOut: %w", err)
	}
	bwdHubs, err := graph.ReadUint32Slice(r, int(hdr.NumBwdEntries))
	if err != nil {
		return nil, fmt.Errorf("read bwd hubs: %w", err)
	}
	bwdCosts, err := graph.ReadUint32Slice(r, int(hdr.NumBwdEntries))
	if err != nil {
		return nil, fmt.Errorf("read bwd costs: %w", err)
	}

	expectedCRC := r.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	return &HubGraph{
		Forward:  unflattenLabels(fwdFirstOut, fwdHubs, fwdCosts),
		Backward: unflattenLabels(bwdFirstOut, bwdHubs, bwdCosts),
	}, nil
}

func flattenLabels(labels []Label) (firstOut, hubs, costs []uint32) {
	firstOut = make([]uint32, len(labels)+1)
	var total uint32
	for i, l := range labels {
		firstOut[i] = total
		total += uint32(len(l.Entries))
	}
	firstOut[len(labels)] = total

	hubs = make([]uint32, total)
	costs = make([]uint32, total)
	var k uint32
	for _, l := range labels {
		for _, e := range l.Entries {
			hubs[k] = e.Hub
			costs[k] = e.Cost
			k++
		}
	}
	return firstOut, hubs, costs
}

func unflattenLabels(firstOut, hubs, costs []uint32) []Label {
	n := len(firstOut) - 1
	if n < 0 {
		return nil
	}
	labels := make([]Label, n)
	for v := 0; v < n; v++ {
		start, end := firstOut[v], firstOut[v+1]
		entries := make([]LabelEntry, end-start)
		for i := start; i < end; i++ {
			entries[i-start] = LabelEntry{Hub: hubs[i], Cost: costs[i]}
		}
		labels[v] = Label{Entries: entries}
	}
	return labels
}
