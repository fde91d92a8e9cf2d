package feed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/crossing.report/internal/track"
)

// ReadPcapFile replays a packet capture of the shore-station UDP feed
// and returns the position reports carried in the UDP payloads. An
// optional port filter (0 = any) restricts which destination port is
// treated as feed traffic.
func ReadPcapFile(path string, port uint16, stats *ParseStats) ([]track.PositionReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var out []track.PositionReport
	for {
		data, _, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to read packet: %w", err)
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if port != 0 && uint16(udp.DstPort) != port {
			continue
		}

		reports, err := ParseReader(bytes.NewReader(udp.Payload), stats)
		if err != nil {
			return out, err
		}
		out = append(out, reports...)
	}
	return out, nil
}
