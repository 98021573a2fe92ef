package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	emucore "github.com/user-none/eblitui/android/api"
)

// Memory-watch rumble for cores without native rumble. A cheat file lists
// memory locations and conditions; when a condition holds the listed port's
// motors run at the given strength for the given duration.

// rumbleWarmupFrames are evaluated without firing so the first comparisons
// see settled memory.
const rumbleWarmupFrames = 30

// RumbleEntry is one rumble definition from a cheat file.
type RumbleEntry struct {
	Address           uint32
	SearchSize        int    // 0=1bit, 1=2bit, 2=4bit, 3=8bit, 4=16bit, 5=32bit
	Condition         int    // 0-10, 0 behaves as 1 (value changed)
	Value             uint32 // operand for conditions 5-10
	Port              int    // zero-based port, out of range means every port
	BigEndian         bool
	PrimaryStrength   uint16
	PrimaryDuration   time.Duration
	SecondaryStrength uint16
	SecondaryDuration time.Duration
}

type fieldSetter func(e *RumbleEntry, v string) error

func uintField(bits int, set func(e *RumbleEntry, n uint64)) fieldSetter {
	return func(e *RumbleEntry, v string) error {
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return err
		}
		set(e, n)
		return nil
	}
}

func intField(set func(e *RumbleEntry, n int)) fieldSetter {
	return func(e *RumbleEntry, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(e, n)
		return nil
	}
}

var rumbleFields = map[string]fieldSetter{
	"address":                   uintField(32, func(e *RumbleEntry, n uint64) { e.Address = uint32(n) }),
	"memory_search_size":        intField(func(e *RumbleEntry, n int) { e.SearchSize = n }),
	"rumble_type":               intField(func(e *RumbleEntry, n int) { e.Condition = n }),
	"rumble_value":              uintField(32, func(e *RumbleEntry, n uint64) { e.Value = uint32(n) }),
	"rumble_port":               intField(func(e *RumbleEntry, n int) { e.Port = n }),
	"rumble_primary_strength":   uintField(16, func(e *RumbleEntry, n uint64) { e.PrimaryStrength = uint16(n) }),
	"rumble_secondary_strength": uintField(16, func(e *RumbleEntry, n uint64) { e.SecondaryStrength = uint16(n) }),
	"rumble_primary_duration": intField(func(e *RumbleEntry, n int) {
		e.PrimaryDuration = time.Duration(n) * time.Millisecond
	}),
	"rumble_secondary_duration": intField(func(e *RumbleEntry, n int) {
		e.SecondaryDuration = time.Duration(n) * time.Millisecond
	}),
	"big_endian": func(e *RumbleEntry, v string) error {
		e.BigEndian = v == "true"
		return nil
	},
}

// ParseRumble reads `key = value` lines with a `cheats = N` count and
// `cheatI_<field>` entries. Unparsable fields keep their defaults.
func ParseRumble(r io.Reader) ([]RumbleEntry, error) {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	countStr, ok := kv["cheats"]
	if !ok {
		return nil, fmt.Errorf("missing cheats count")
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid cheats count %q", countStr)
	}

	entries := make([]RumbleEntry, 0, count)
	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("cheat%d_", i)
		var e RumbleEntry
		for field, set := range rumbleFields {
			if v, ok := kv[prefix+field]; ok {
				_ = set(&e, v)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadRumbleFile parses the cheat file at path.
func LoadRumbleFile(path string) ([]RumbleEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRumble(f)
}

// RumbleEvent asks for motors on Port to run.
type RumbleEvent struct {
	Port               int
	Strong, Weak       float64
	StrongFor, WeakFor time.Duration
}

// RumbleEngine evaluates entries once per frame.
type RumbleEngine struct {
	entries   []RumbleEntry
	prev      []uint32
	frames    int
	strongEnd []time.Time
	weakEnd   []time.Time
	bigEndian bool
}

// NewRumbleEngine creates an engine. bigEndian is the byte order of the
// core's memory; entries declaring the other order are byte swapped.
func NewRumbleEngine(entries []RumbleEntry, bigEndian bool) *RumbleEngine {
	return &RumbleEngine{
		entries:   entries,
		prev:      make([]uint32, len(entries)),
		strongEnd: make([]time.Time, len(entries)),
		weakEnd:   make([]time.Time, len(entries)),
		bigEndian: bigEndian,
	}
}

// Evaluate reads memory and returns the events that fire at now.
func (re *RumbleEngine) Evaluate(mi emucore.MemoryInspector, now time.Time) []RumbleEvent {
	if re.frames < rumbleWarmupFrames {
		for i := range re.entries {
			re.prev[i] = re.read(mi, &re.entries[i])
		}
		re.frames++
		return nil
	}

	var events []RumbleEvent
	for i := range re.entries {
		e := &re.entries[i]
		cur := re.read(mi, e)
		prev := re.prev[i]
		re.prev[i] = cur

		if !conditionHolds(e.Condition, cur, prev, e.Value) {
			continue
		}
		strong := e.PrimaryStrength > 0 && e.PrimaryDuration > 0 && !now.Before(re.strongEnd[i])
		weak := e.SecondaryStrength > 0 && e.SecondaryDuration > 0 && !now.Before(re.weakEnd[i])
		if !strong && !weak {
			continue
		}

		ev := RumbleEvent{Port: e.Port}
		if strong {
			ev.Strong = float64(e.PrimaryStrength) / 65535.0
			ev.StrongFor = e.PrimaryDuration
			re.strongEnd[i] = now.Add(e.PrimaryDuration)
		}
		if weak {
			ev.Weak = float64(e.SecondaryStrength) / 65535.0
			ev.WeakFor = e.SecondaryDuration
			re.weakEnd[i] = now.Add(e.SecondaryDuration)
		}
		events = append(events, ev)
	}
	return events
}

// Reset restarts warmup. Used after state loads, which rewrite memory.
func (re *RumbleEngine) Reset() {
	re.frames = 0
	for i := range re.prev {
		re.prev[i] = 0
		re.strongEnd[i] = time.Time{}
		re.weakEnd[i] = time.Time{}
	}
}

func (re *RumbleEngine) read(mi emucore.MemoryInspector, e *RumbleEntry) uint32 {
	return readMemory(mi, e.Address, e.SearchSize, e.BigEndian != re.bigEndian)
}

func conditionHolds(cond int, cur, prev, value uint32) bool {
	switch cond {
	case 0, 1:
		return cur != prev
	case 2:
		return cur == prev
	case 3:
		return cur > prev
	case 4:
		return cur < prev
	case 5:
		return cur == value
	case 6:
		return cur != value
	case 7:
		return cur < value
	case 8:
		return cur > value
	case 9:
		return cur == prev+value
	case 10:
		return cur == prev-value
	}
	return false
}

var subByteMasks = [...]uint32{1, 3, 0x0F, 0xFF}

func readMemory(mi emucore.MemoryInspector, addr uint32, size int, swap bool) uint32 {
	var buf [4]byte
	switch size {
	case 4:
		mi.ReadMemory(addr, buf[:2])
		if swap {
			return uint32(buf[0])<<8 | uint32(buf[1])
		}
		return uint32(buf[0]) | uint32(buf[1])<<8
	case 5:
		mi.ReadMemory(addr, buf[:4])
		if swap {
			return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		}
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	}

	if swap {
		addr ^= 1
	}
	mi.ReadMemory(addr, buf[:1])
	if size >= 0 && size < len(subByteMasks) {
		return uint32(buf[0]) & subByteMasks[size]
	}
	return uint32(buf[0])
}
