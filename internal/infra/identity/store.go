package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"voice-client/internal/domain"
)

const fileName = "device.yaml"

type record struct {
	MACAddress string    `yaml:"mac_address"`
	ClientID   string    `yaml:"client_id"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// Store persists the device identity so the server sees the same device across
// restarts.
type Store struct {
	dir string

	// Interfaces lists candidate network interfaces. Defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, Interfaces: net.Interfaces}
}

func (s *Store) Path() string { return filepath.Join(s.dir, fileName) }

// Load returns the stored identity, creating and saving one on first use.
func (s *Store) Load(boardName, version string) (domain.DeviceIdentity, error) {
	rec, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.DeviceIdentity{}, err
	}

	dirty := false
	if rec.MACAddress == "" {
		rec.MACAddress = s.macAddress()
		dirty = true
	}
	if _, err := uuid.Parse(rec.ClientID); err != nil {
		rec.ClientID = uuid.New().String()
		dirty = true
	}
	if dirty {
		rec.CreatedAt = time.Now().UTC()
		if err := s.write(rec); err != nil {
			return domain.DeviceIdentity{}, err
		}
	}

	return domain.DeviceIdentity{
		MACAddress: rec.MACAddress,
		ClientID:   rec.ClientID,
		BoardName:  boardName,
		Version:    version,
	}, nil
}

func (s *Store) read() (record, error) {
	var rec record
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("parsing %s: %w", s.Path(), err)
	}
	return rec, nil
}

func (s *Store) write(rec record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}

// macAddress picks the hardware address of the first up, non-loopback
// interface, falling back to a random locally administered address.
func (s *Store) macAddress() string {
	if s.Interfaces != nil {
		if ifaces, err := s.Interfaces(); err == nil {
			for _, iface := range ifaces {
				if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
					continue
				}
				if len(iface.HardwareAddr) == 6 {
					return strings.ToLower(iface.HardwareAddr.String())
				}
			}
		}
	}
	return randomMAC()
}

func randomMAC() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		copy(b, uuid.New().NodeID())
	}
	b[0] = (b[0] | 0x02) &^ 0x01
	return net.HardwareAddr(b).String()
}
