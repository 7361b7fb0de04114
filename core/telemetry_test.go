package core

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"pilot/protocol"
)

func TestSampleSpacing(t *testing.T) {
	for _, interval := range []int64{50, 75, 100, 250, 1000} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			console, _ := newTestConsole()
			s := NewSampler(NewRegistry(console), console)
			s.SetInterval(interval)

			r := rand.New(rand.NewSource(interval))
			now := int64(0)
			var emitted []int64
			for now < 20000 {
				now += 1 + r.Int63n(40)
				if rec := s.Sample(now); rec != nil {
					if rec.Timestamp != now {
						t.Fatalf("Record timestamp %d, want %d", rec.Timestamp, now)
					}
					emitted = append(emitted, now)
				}
			}

			if len(emitted) < 2 {
				t.Fatalf("Expected several records, got %d", len(emitted))
			}
			for i := 1; i < len(emitted); i++ {
				if gap := emitted[i] - emitted[i-1]; gap < interval {
					t.Fatalf("Records %d and %d only %d ms apart", i-1, i, gap)
				}
			}
		})
	}
}

func TestSampleDisabled(t *testing.T) {
	console, log := newTestConsole()
	s := NewSampler(NewRegistry(console), console)
	s.SetEnabled(false)

	for now := int64(0); now < 2000; now += 100 {
		if s.Sample(now) != nil {
			t.Fatalf("Disabled sampler emitted at %d", now)
		}
	}
	if !log.has("[PILOT] Telemetry disabled") {
		t.Error("Expected disabled log")
	}
}

func TestSetIntervalFloor(t *testing.T) {
	console, log := newTestConsole()
	s := NewSampler(NewRegistry(console), console)

	s.SetInterval(10)
	if s.Interval() != MinTelemetryInterval {
		t.Errorf("Expected interval %d, got %d", MinTelemetryInterval, s.Interval())
	}
	if !log.has("[PILOT] Telemetry interval set to 50 ms") {
		t.Error("Expected interval log")
	}
}

func TestSnapshotFields(t *testing.T) {
	console, _ := newTestConsole()
	reg := NewRegistry(console)

	hub := newFakeHub()
	reg.RegisterHub(hub)
	reg.RegisterMotor("left", &fakeMotor{angle: 90, speed: 10})
	arm := &loadMotor{}
	arm.angle, arm.speed, arm.load = 45, 0, 12
	reg.RegisterMotor("arm", arm)
	reg.RegisterSensor("eye", &fakeColorSensor{color: "Color.RED", reflection: 40, ambient: 7})
	reg.RegisterSensor("sonar", &fakeUltrasonic{distance: 250})
	reg.RegisterSensor("bumper", &fakeForce{force: 2.5, pressed: true})
	reg.RegisterSensor("spin", &fakeRotation{angle: 33})
	reg.RegisterSensor("thing", genericSensor{})
	reg.RegisterGyro(&fakeGyro{angle: 12})
	db := &stateDrivebase{state: DriveState{Distance: 100, DriveSpeed: 50, Angle: 10, TurnRate: 5}}
	db.distance, db.angle = 100, 10
	reg.RegisterDrivebase(db)

	s := NewSampler(reg, console)
	rec := s.Snapshot(1234)

	if rec.Timestamp != 1234 || rec.Type != protocol.TelemetryType {
		t.Errorf("Unexpected header %+v", rec)
	}

	left := rec.Motors["left"]
	if left.Angle == nil || *left.Angle != 90 || left.Speed == nil || *left.Speed != 10 || left.Load != nil {
		t.Errorf("Unexpected left motor %+v", left)
	}
	if am := rec.Motors["arm"]; am.Load == nil || *am.Load != 12 {
		t.Errorf("Expected arm load 12, got %+v", am)
	}

	eye := rec.Sensors["eye"]
	if eye.Type != protocol.SensorTypeColor || eye.Color != "Color.RED" || *eye.Reflection != 40 || *eye.Ambient != 7 {
		t.Errorf("Unexpected color sensor %+v", eye)
	}
	if sonar := rec.Sensors["sonar"]; sonar.Type != protocol.SensorTypeUltrasonic || *sonar.Distance != 250 {
		t.Errorf("Unexpected ultrasonic %+v", sonar)
	}
	if b := rec.Sensors["bumper"]; b.Type != protocol.SensorTypeForce || *b.Force != 2.5 || !*b.Pressed {
		t.Errorf("Unexpected force sensor %+v", b)
	}
	if sp := rec.Sensors["spin"]; sp.Type != protocol.SensorTypeRotation || *sp.Angle != 33 || sp.Speed != nil {
		t.Errorf("Unexpected rotation sensor %+v", sp)
	}
	if g := rec.Sensors["thing"]; g.Type != protocol.SensorTypeGeneric || g.Value != "GenericSensor(port A)" {
		t.Errorf("Unexpected generic sensor %+v", g)
	}

	if rec.Hub == nil || rec.Hub.Battery == nil || rec.Hub.Battery.Voltage != 8.1 {
		t.Fatalf("Expected hub battery, got %+v", rec.Hub)
	}
	if rec.Hub.IMU == nil || rec.Hub.IMU.Heading == nil || len(rec.Hub.IMU.Acceleration) != 3 {
		t.Errorf("Unexpected IMU %+v", rec.Hub.IMU)
	}
	if rec.Hub.System == nil || rec.Hub.System.Name != "pilot-hub" {
		t.Errorf("Unexpected system %+v", rec.Hub.System)
	}
	if rec.Hub.Gyro == nil || *rec.Hub.Gyro.Angle != 12 {
		t.Errorf("Unexpected gyro %+v", rec.Hub.Gyro)
	}

	if rec.Drivebase == nil || *rec.Drivebase.Distance != 100 || rec.Drivebase.State == nil || rec.Drivebase.State.DriveSpeed != 50 {
		t.Errorf("Unexpected drivebase %+v", rec.Drivebase)
	}

	line, err := rec.Encode()
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{`"type":"telemetry"`, `"spin":{"type":"rotation","angle":33,"speed":null}`, `"drive_speed":50`} {
		if !strings.Contains(line, sub) {
			t.Errorf("Encoded record missing %s: %s", sub, line)
		}
	}
}

func TestSnapshotEmptyRegistry(t *testing.T) {
	console, _ := newTestConsole()
	rec := NewSampler(NewRegistry(console), console).Snapshot(5)

	if rec.Motors != nil || rec.Sensors != nil || rec.Hub != nil || rec.Drivebase != nil {
		t.Errorf("Expected a bare record, got %+v", rec)
	}
	line, err := rec.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if line != `{"timestamp":5,"type":"telemetry"}` {
		t.Errorf("Unexpected encoding %s", line)
	}
}

func TestSnapshotFieldFailures(t *testing.T) {
	console, _ := newTestConsole()
	reg := NewRegistry(console)

	hub := newFakeHub()
	hub.batteryErr = errRead
	hub.accel = []float64{1, 2}
	reg.RegisterHub(hub)
	reg.RegisterMotor("bad", &fakeMotor{err: errRead})
	arm := &loadMotor{loadErr: errRead}
	reg.RegisterMotor("arm", arm)
	reg.RegisterSensor("eye", &fakeColorSensor{colorErr: errRead})
	reg.RegisterSensor("dim", &fakeColorSensor{color: "Color.NONE", reflectErr: errRead})
	reg.RegisterSensor("sonar", &fakeUltrasonic{err: errRead})
	reg.RegisterSensor("flaky", panicSensor{})
	reg.RegisterGyro(&fakeGyro{err: errRead})

	rec := NewSampler(reg, console).Snapshot(1)

	if m := rec.Motors["bad"]; m.Error != "read failed" || m.Angle != nil {
		t.Errorf("Expected motor error, got %+v", m)
	}
	if m := rec.Motors["arm"]; m.Error != "" || m.Load != nil || m.Angle == nil {
		t.Errorf("A failed load read must be omitted, got %+v", m)
	}
	if s := rec.Sensors["eye"]; s.Type != protocol.SensorTypeColor || s.Error != "Color read error: read failed" {
		t.Errorf("Unexpected color failure %+v", s)
	}
	if s := rec.Sensors["dim"]; s.ReflectionError != "read failed" || s.Ambient == nil {
		t.Errorf("Reflection failure must not drop ambient, got %+v", s)
	}
	if s := rec.Sensors["sonar"]; s.Error != "Distance read error: read failed" {
		t.Errorf("Unexpected ultrasonic failure %+v", s)
	}
	if s := rec.Sensors["flaky"]; s.Type != protocol.SensorTypeError || s.Error != "sensor unplugged" {
		t.Errorf("Unexpected panic capture %+v", s)
	}

	if rec.Hub == nil {
		t.Fatal("Expected hub sub-record")
	}
	if rec.Hub.Error != "read failed" || rec.Hub.Battery != nil {
		t.Errorf("Expected battery failure on hub, got %+v", rec.Hub)
	}
	if rec.Hub.IMU == nil || rec.Hub.IMU.AccelerationError != protocol.UnsupportedVector || len(rec.Hub.IMU.AngularVelocity) != 3 {
		t.Errorf("Expected unsupported acceleration only, got %+v", rec.Hub.IMU)
	}
	if rec.Hub.System == nil {
		t.Error("Battery failure must not drop the system record")
	}
	if rec.Hub.Gyro == nil || rec.Hub.Gyro.Error != "read failed" {
		t.Errorf("Expected gyro error, got %+v", rec.Hub.Gyro)
	}
}

func TestSendTelemetryEmitsLine(t *testing.T) {
	ta := newTestAgent()
	ta.Registry().RegisterMotor("left", &fakeMotor{angle: 1})

	if !ta.SendTelemetry() {
		t.Fatal("Expected a record at the first interval")
	}
	if ta.SendTelemetry() {
		t.Error("Expected no second record within the interval")
	}
	ta.clock.Advance(DefaultTelemetryInterval)
	if !ta.SendTelemetry() {
		t.Error("Expected a record after one interval")
	}

	lines := ta.log.withPrefix(`{"timestamp":`)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 telemetry lines, got %d", len(lines))
	}
	rec, err := protocol.DecodeTelemetry(lines[1])
	if err != nil {
		t.Fatal(err)
	}
	if rec.Timestamp != 1000+DefaultTelemetryInterval {
		t.Errorf("Unexpected timestamp %d", rec.Timestamp)
	}
}
