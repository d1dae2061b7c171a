// Command touchdbg polls a TT21100 touch controller and prints its
// reports along with the tracked contact lifecycle. Packets can be
// recorded to a file and decoded again later, a simulated controller
// stands in when no hardware is connected, and tracked contacts can be
// forwarded to a virtual Linux input device.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"time"

	"github.com/jessebraham/tt21100"
	"github.com/jessebraham/tt21100/sc18im"
	"github.com/jessebraham/tt21100/touch"
	"github.com/jessebraham/tt21100/trace"
	"github.com/jessebraham/tt21100/uinput"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	i2cFlag      = flag.String("i2c", "", "I²C bus name, empty for the first available")
	serialFlag   = flag.String("serial", "", "poll through a SC18IM700 bridge on this serial device")
	baudFlag     = flag.Int("baud", 9600, "baud rate of the serial bridge")
	addrFlag     = flag.Uint("addr", 0x24, "controller address")
	irqFlag      = flag.String("irq", "", "interrupt pin name")
	resetFlag    = flag.String("reset", "", "reset pin name")
	pointsFlag   = flag.Int("points", 2, "contact records per report")
	widthFlag    = flag.Int("width", 320, "panel width")
	heightFlag   = flag.Int("height", 240, "panel height")
	swapFlag     = flag.Bool("swap", false, "swap the x and y axes")
	invxFlag     = flag.Bool("invx", false, "invert the x axis")
	invyFlag     = flag.Bool("invy", false, "invert the y axis")
	recordFlag   = flag.String("record", "", "record raw packets to this file")
	replayFlag   = flag.String("replay", "", "decode packets from a recording instead of hardware")
	uinputFlag   = flag.Bool("uinput", false, "forward contacts to a virtual input device")
	demoFlag     = flag.Bool("demo", false, "poll a simulated controller")
	intervalFlag = flag.Duration("interval", 10*time.Millisecond, "poll interval without an interrupt pin")
)

func main() {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "touchdbg: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *replayFlag != "" {
		if *uinputFlag {
			return errors.New("-uinput requires a live controller")
		}
		return replay(*replayFlag)
	}
	bus, closeBus, err := openBus()
	if err != nil {
		return err
	}
	if closeBus != nil {
		defer closeBus()
	}
	cfg := tt21100.Config{
		Addr:      uint16(*addrFlag),
		MaxPoints: *pointsFlag,
		Width:     *widthFlag,
		Height:    *heightFlag,
		SwapAxes:  *swapFlag,
		InvertX:   *invxFlag,
		InvertY:   *invyFlag,
	}
	if *irqFlag != "" {
		if cfg.IRQ = gpioreg.ByName(*irqFlag); cfg.IRQ == nil {
			return fmt.Errorf("no pin named %q", *irqFlag)
		}
	}
	if *resetFlag != "" {
		if cfg.Reset = gpioreg.ByName(*resetFlag); cfg.Reset == nil {
			return fmt.Errorf("no pin named %q", *resetFlag)
		}
	}
	d, err := tt21100.New(bus, cfg)
	if err != nil {
		return err
	}
	var rec *trace.Writer
	if *recordFlag != "" {
		f, err := os.Create(*recordFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		if rec, err = trace.NewWriter(f); err != nil {
			return err
		}
	}
	var sink *uinput.Device
	if *uinputFlag {
		sink, err = uinput.Open("TT21100 Touchscreen", cfg.Width, cfg.Height, touch.MaxSlots)
		if err != nil {
			return err
		}
		defer sink.Close()
	}
	return poll(d, cfg.IRQ != nil, rec, sink)
}

// openBus selects the transport: the simulator, a serial bridge or a
// host I²C bus.
func openBus() (tt21100.Bus, func() error, error) {
	switch {
	case *demoFlag:
		sim := tt21100.NewSimulator()
		go demo(sim)
		return sim, nil, nil
	case *serialFlag != "":
		port, err := sc18im.Open(*serialFlag, *baudFlag)
		if err != nil {
			return nil, nil, err
		}
		return port, port.Close, nil
	default:
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		bus, err := i2creg.Open(*i2cFlag)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	}
}

func poll(d *tt21100.Device, hasIRQ bool, rec *trace.Writer, sink *uinput.Device) error {
	tracker := touch.NewTracker(*pointsFlag)
	for {
		if hasIRQ {
			d.WaitForData(-1)
		}
		pkt, err := d.ReadPacket()
		if errors.Is(err, tt21100.ErrNoData) {
			if !hasIRQ {
				time.Sleep(*intervalFlag)
			}
			continue
		}
		var lerr *tt21100.LengthError
		if errors.As(err, &lerr) {
			// The controller repeats the packet; pace the retries.
			log.Printf("dropping packet: %v", err)
			if !hasIRQ {
				time.Sleep(*intervalFlag)
			}
			continue
		}
		if err != nil {
			return err
		}
		if rec != nil {
			if err := rec.Write(pkt); err != nil {
				return err
			}
		}
		rep, err := d.Decode(pkt)
		if err != nil {
			// Unknown and malformed reports are consumed; keep
			// polling.
			log.Printf("dropping packet: %v", err)
			continue
		}
		if err := report(rep, tracker, sink); err != nil {
			return err
		}
	}
}

func report(rep tt21100.Report, tracker *touch.Tracker, sink *uinput.Device) error {
	switch rep := rep.(type) {
	case *tt21100.TouchReport:
		events := tracker.Update(rep.Contacts())
		for _, e := range events {
			log.Printf("%-4s slot %d (%d, %d) pressure %d", e.State, e.ID, e.Pos.X, e.Pos.Y, e.Pressure)
		}
		if sink != nil {
			return sink.Emit(events)
		}
	case *tt21100.ButtonReport:
		log.Printf("buttons %04b signal %v", rep.Buttons, rep.Signal)
	case *tt21100.StatusReport:
		log.Printf("status %#x", rep.Code)
	}
	return nil
}

// replay prints a recording, paced like the original session. The
// coordinates are shown as captured, without orientation mapping.
func replay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := trace.NewReader(f)
	if err != nil {
		return err
	}
	tracker := touch.NewTracker(*pointsFlag)
	var last time.Duration
	for {
		pkt, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		time.Sleep(pkt.Elapsed - last)
		last = pkt.Elapsed
		rep, err := tt21100.Decode(pkt.Data)
		if err != nil {
			log.Printf("dropping packet: %v", err)
			continue
		}
		if err := report(rep, tracker, nil); err != nil {
			return err
		}
	}
}

// demo feeds the simulator a tap, a two finger press and a swipe,
// forever.
func demo(sim *tt21100.Simulator) {
	rec := func(id, x, y int, ev tt21100.ContactEvent) tt21100.TouchRecord {
		return tt21100.TouchRecord{
			ID:       id,
			Pos:      image.Pt(x, y),
			Tip:      ev != tt21100.EventLiftoff,
			Event:    ev,
			Pressure: 64,
			Major:    10,
		}
	}
	for {
		sim.Touch(rec(0, 160, 120, tt21100.EventTouchdown))
		time.Sleep(60 * time.Millisecond)
		sim.Touch(rec(0, 160, 120, tt21100.EventLiftoff))
		time.Sleep(400 * time.Millisecond)

		sim.Touch(
			rec(0, 100, 80, tt21100.EventTouchdown),
			rec(1, 220, 80, tt21100.EventTouchdown),
		)
		time.Sleep(200 * time.Millisecond)
		sim.Touch(
			rec(0, 100, 80, tt21100.EventLiftoff),
			rec(1, 220, 80, tt21100.EventLiftoff),
		)
		sim.Button(0x01)
		time.Sleep(400 * time.Millisecond)

		for x := 40; x <= 280; x += 20 {
			ev := tt21100.EventMove
			if x == 40 {
				ev = tt21100.EventTouchdown
			}
			sim.Touch(rec(0, x, 200, ev))
			time.Sleep(30 * time.Millisecond)
		}
		sim.Touch(rec(0, 280, 200, tt21100.EventLiftoff))
		time.Sleep(time.Second)
	}
}
