package kernel

import (
	"testing"
	"time"
)

func TestRestrictDropsRights(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)

	send := ep.Restrict(RightSend)
	if !send.canSend() || send.canRecv() {
		t.Fatalf("Restrict(RightSend) rights = %b; want send only", send.rights)
	}
	if got := send.Restrict(RightRecv); got.Valid() {
		t.Fatal("restricting a send-only capability to recv should be invalid")
	}
	if got := (Capability{}).Restrict(RightSend); got.Valid() {
		t.Fatal("restricting the zero capability should stay invalid")
	}
}

func TestSendRejections(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)
	ctx := &Context{k: k}

	tcs := []struct {
		name    string
		to      Capability
		payload []byte
		want    SendResult
	}{
		{name: "zero cap", to: Capability{}, want: SendErrInvalidToCap},
		{name: "recv only", to: ep.Restrict(RightRecv), want: SendErrToNoSendRight},
		{name: "too large", to: ep.Restrict(RightSend), payload: make([]byte, MaxMessageBytes+1), want: SendErrPayloadTooLarge},
		{name: "unknown endpoint", to: Capability{ep: 9, rights: RightSend}, want: SendErrNoEndpoint},
		{name: "ok", to: ep.Restrict(RightSend), payload: []byte("x"), want: SendOK},
	}
	for _, tc := range tcs {
		if got := ctx.SendToCapResult(tc.to, 1, tc.payload, Capability{}); got != tc.want {
			t.Fatalf("%s: SendToCapResult = %s; want %s", tc.name, got, tc.want)
		}
	}
}

func TestSendRequiresFromSendRight(t *testing.T) {
	k := New()
	from := k.NewEndpoint(RightSend | RightRecv)
	to := k.NewEndpoint(RightSend | RightRecv)
	ctx := &Context{k: k}

	if got := ctx.SendCapResult(from.Restrict(RightRecv), to, 1, nil, Capability{}); got != SendErrFromNoSendRight {
		t.Fatalf("SendCapResult = %s; want %s", got, SendErrFromNoSendRight)
	}
	if got := ctx.SendCapResult(from, to, 1, []byte("hi"), Capability{}); got != SendOK {
		t.Fatalf("SendCapResult = %s; want ok", got)
	}
	msg, ok := ctx.TryRecv(to.Restrict(RightRecv))
	if !ok {
		t.Fatal("expected a queued message")
	}
	if msg.From != from.ep || string(msg.Payload()) != "hi" {
		t.Fatalf("message = from %d payload %q; want from %d payload %q", msg.From, msg.Payload(), from.ep, "hi")
	}
}

func TestMessageCarriesCapability(t *testing.T) {
	k := New()
	ep := k.NewEndpoint(RightSend | RightRecv)
	reply := k.NewEndpoint(RightSend | RightRecv)
	ctx := &Context{k: k}

	if !ctx.SendToCap(ep.Restrict(RightSend), 2, nil, reply.Restrict(RightSend)) {
		t.Fatal("SendToCap failed")
	}
	msg, ok := ctx.Recv(ep.Restrict(RightRecv))
	if !ok {
		t.Fatal("Recv failed")
	}
	if !msg.Cap.Valid() || msg.Cap.ep != reply.ep || msg.Cap.canRecv() {
		t.Fatalf("transferred capability = %+v; want send-only on endpoint %d", msg.Cap, reply.ep)
	}
}

func TestNewEndpointExhaustion(t *testing.T) {
	k := New()
	for i := 0; i < maxEndpoints; i++ {
		if !k.NewEndpoint(RightSend).Valid() {
			t.Fatalf("NewEndpoint #%d invalid; want valid", i)
		}
	}
	if k.NewEndpoint(RightSend).Valid() {
		t.Fatal("NewEndpoint past the table size should be invalid")
	}
}

func TestWaitTickReturnsNewerTick(t *testing.T) {
	k := New()
	ctx := &Context{k: k}

	got := make(chan uint64, 1)
	go func() {
		got <- ctx.WaitTick(0)
	}()

	k.TickTo(3)
	k.TickTo(2)

	select {
	case v := <-got:
		if v != 3 {
			t.Fatalf("WaitTick = %d; want 3", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
	}
	if now := ctx.NowTick(); now != 3 {
		t.Fatalf("NowTick = %d; want 3 (TickTo must not go backwards)", now)
	}
}

type panicTask struct{}

func (panicTask) Run(*Context) { panic("boom") }

func TestTaskPanicIsCaptured(t *testing.T) {
	got := make(chan PanicInfo, 1)
	SetPanicHandler(func(info PanicInfo) { got <- info })

	k := New()
	k.AddTask(panicTask{})

	select {
	case info := <-got:
		if info.Value != "boom" {
			t.Fatalf("panic value = %v; want boom", info.Value)
		}
		if len(info.Stack) == 0 {
			t.Fatal("expected a captured stack")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for panic handler")
	}
	if !InPanicMode() {
		t.Fatal("InPanicMode = false after a task panic")
	}
}
