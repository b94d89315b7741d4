package metrics

import (
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dkgmesh/idkg/common/log"
	"github.com/dkgmesh/idkg/idkg"
)

type mockLogger struct {
	mock.Mock
}

func (m *mockLogger) Info(keyvals ...interface{})  { m.Called() }
func (m *mockLogger) Debug(keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Warn(keyvals ...interface{})  { m.Called() }
func (m *mockLogger) Error(keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Fatal(keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Panic(keyvals ...interface{}) { m.Called() }

func (m *mockLogger) Infow(msg string, keyvals ...interface{})  { m.Called() }
func (m *mockLogger) Debugw(msg string, keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Warnw(msg string, keyvals ...interface{})  { m.Called() }
func (m *mockLogger) Errorw(msg string, keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Fatalw(msg string, keyvals ...interface{}) { m.Called() }
func (m *mockLogger) Panicw(msg string, keyvals ...interface{}) { m.Called() }

func (m *mockLogger) With(args ...interface{}) log.Logger      { return m }
func (m *mockLogger) Named(s string) log.Logger                { return m }
func (m *mockLogger) AddCallerSkip(skip int) log.Logger        { return m }

func newMockLogger() *mockLogger {
	l := &mockLogger{}
	l.On("Infow").Return()
	l.On("Debugw").Return()
	l.On("Warnw").Return()
	l.On("Errorw").Return()
	return l
}

func newTestMonitor(l *mockLogger, corruptionBound int) *DealerHealthMonitor {
	m := NewDealerHealthMonitor(idkg.NewTranscriptId("subnet-m", 1), l, corruptionBound)
	m.period = 0 // report on every loop iteration, no sleeping in tests
	return m
}

func TestDealerHealthMonitorErrorsAtCorruptionBound(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 3)

	m.ReportComplaint(idkg.NodeID("a"))
	m.ReportComplaint(idkg.NodeID("b"))
	m.ReportComplaint(idkg.NodeID("c"))
	m.report()

	l.AssertCalled(t, "Errorw", mock.Anything)
}

func TestDealerHealthMonitorWarnsAtHalfCorruptionBound(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 4)

	m.ReportComplaint(idkg.NodeID("a"))
	m.ReportComplaint(idkg.NodeID("b"))
	m.report()

	l.AssertCalled(t, "Warnw", mock.Anything)
	l.AssertNotCalled(t, "Errorw", mock.Anything)
}

func TestDealerHealthMonitorNominalWhenNoComplaints(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 3)

	m.report()

	l.AssertCalled(t, "Debugw", mock.Anything)
	l.AssertNotCalled(t, "Warnw", mock.Anything)
	l.AssertNotCalled(t, "Errorw", mock.Anything)
}

func TestDealerHealthMonitorResetsEachReport(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 3)

	m.ReportComplaint(idkg.NodeID("a"))
	m.ReportComplaint(idkg.NodeID("b"))
	m.ReportComplaint(idkg.NodeID("c"))
	m.report()
	l.AssertCalled(t, "Errorw", mock.Anything)

	m.report()
	l.AssertCalled(t, "Debugw", mock.Anything)
}

func TestDealerHealthMonitorDuplicateComplaintsCountedOnce(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 4)

	m.ReportComplaint(idkg.NodeID("a"))
	m.ReportComplaint(idkg.NodeID("a"))
	m.ReportComplaint(idkg.NodeID("a"))
	m.report()

	l.AssertCalled(t, "Debugw", mock.Anything)
	l.AssertNotCalled(t, "Warnw", mock.Anything)
	l.AssertNotCalled(t, "Errorw", mock.Anything)
}

func TestDealerHealthMonitorStartStop(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 3)
	m.Start()
	m.Stop()
}

func TestDealerHealthMonitorUpdate(t *testing.T) {
	l := newMockLogger()
	m := newTestMonitor(l, 3)
	m.Update(10)
	m.ReportComplaint(idkg.NodeID("a"))
	m.report()
	l.AssertCalled(t, "Debugw", mock.Anything)
	l.AssertNotCalled(t, "Warnw", mock.Anything)
}
