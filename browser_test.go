// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuantum = 20 * time.Millisecond

func newTestBrowser(t *testing.T, s *fakeSession) *QueueBrowser {
	t.Helper()

	b, err := NewQueueBrowser(s, NewQueue(DefaultPrefixes().Queue, "orders"), "region = 'eu'", WithWaitQuantum(testQuantum))
	require.NoError(t, err)

	return b
}

func TestQueueBrowser_ImmediateEnd(t *testing.T) {
	s := newFakeSession()
	s.onRegister = func(_ ConsumerRequest, deliver DeliveryFunc) {
		deliver(endOfBrowse())
	}
	b := newTestBrowser(t, s)

	e, err := b.Enumeration()
	require.NoError(t, err)

	start := time.Now()
	assert.False(t, e.HasMoreElements())
	assert.Less(t, time.Since(start), testQuantum)

	assert.Equal(t, int32(1), s.closes.Load())
	assert.Equal(t, BrowserDone, b.State())
	assert.Nil(t, e.NextElement())
}

func TestQueueBrowser_Request(t *testing.T) {
	s := newFakeSession()
	b := newTestBrowser(t, s)
	assert.Equal(t, BrowserIdle, b.State())

	_, err := b.Enumeration()
	require.NoError(t, err)
	_, err = b.Enumeration()
	require.NoError(t, err)

	require.Len(t, s.requests, 1, "the subscription is opened once")
	req := s.requests[0]
	assert.True(t, req.Browser)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "region = 'eu'", req.Selector)
	assert.Equal(t, "/queue/orders", req.Destination.QualifiedName())
	assert.Equal(t, BrowserScanning, b.State())

	require.NoError(t, b.Close())
}

func TestQueueBrowser_DrainsBeforeEnd(t *testing.T) {
	s := newFakeSession()
	s.onRegister = func(_ ConsumerRequest, deliver DeliveryFunc) {
		deliver(NewTextMessage("1"))
		deliver(NewTextMessage("2"))
		deliver(endOfBrowse())
	}
	b := newTestBrowser(t, s)

	var got []string
	for m := range b.Messages() {
		text, err := m.Text()
		require.NoError(t, err)
		assert.True(t, m.IsReadOnly())
		got = append(got, text)
	}

	assert.Equal(t, []string{"1", "2"}, got)
	assert.Equal(t, int32(1), s.closes.Load())
}

func TestQueueBrowser_AsyncDelivery(t *testing.T) {
	s := newFakeSession()
	b, err := NewQueueBrowser(s, NewQueue(DefaultPrefixes().Queue, "orders"), "")
	require.NoError(t, err)

	e, err := b.Enumeration()
	require.NoError(t, err)
	deliver := s.lastDeliver()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		deliver(NewTextMessage("late"))
		deliver(nil)
	}()

	// the default quantum is far longer than the delivery delay, so the wake-up comes from delivery
	require.True(t, e.HasMoreElements())
	m := e.NextElement()
	require.NotNil(t, m)
	assert.Nil(t, e.NextElement())

	wg.Wait()
}

func TestQueueBrowser_SessionStopEscape(t *testing.T) {
	s := newFakeSession()
	b := newTestBrowser(t, s)

	e, err := b.Enumeration()
	require.NoError(t, err)

	s.started.Store(false)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.HasMoreElements()
		}()
	}
	wg.Wait()

	assert.Equal(t, []bool{false, false, false, false}, results)
	assert.Equal(t, int32(1), s.closes.Load(), "torn down exactly once")
	assert.Nil(t, e.NextElement())
}

func TestQueueBrowser_StopWhileWaiting(t *testing.T) {
	s := newFakeSession()
	b := newTestBrowser(t, s)

	e, err := b.Enumeration()
	require.NoError(t, err)

	done := make(chan *Message)
	go func() {
		done <- e.NextElement()
	}()

	time.Sleep(testQuantum / 2)
	s.started.Store(false)

	select {
	case m := <-done:
		assert.Nil(t, m)
	case <-time.After(10 * testQuantum):
		t.Fatal("NextElement did not notice the stopped session")
	}
	assert.Equal(t, int32(1), s.closes.Load())
}

func TestQueueBrowser_TransactedCommitsFirst(t *testing.T) {
	s := newFakeSession()
	s.transacted = true
	s.onRegister = func(_ ConsumerRequest, deliver DeliveryFunc) {
		deliver(endOfBrowse())
	}
	b := newTestBrowser(t, s)

	e, err := b.Enumeration()
	require.NoError(t, err)
	assert.False(t, e.HasMoreElements())

	assert.Equal(t, []string{"commit", "close"}, s.calls())
}

func TestQueueBrowser_CloseWakesIterator(t *testing.T) {
	s := newFakeSession()
	b, err := NewQueueBrowser(s, NewQueue(DefaultPrefixes().Queue, "orders"), "")
	require.NoError(t, err)

	e, err := b.Enumeration()
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		done <- e.HasMoreElements()
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case more := <-done:
		assert.False(t, more)
	case <-time.After(time.Second):
		t.Fatal("HasMoreElements stayed blocked after Close")
	}

	assert.Equal(t, BrowserClosed, b.State())
	assert.Equal(t, int32(1), s.closes.Load())
}

func TestQueueBrowser_Closed(t *testing.T) {
	s := newFakeSession()
	b := newTestBrowser(t, s)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Enumeration()
	assert.ErrorIs(t, err, IllegalStateError{})
	_, err = b.Queue()
	assert.ErrorIs(t, err, IllegalStateError{})
	_, err = b.MessageSelector()
	assert.ErrorIs(t, err, IllegalStateError{})

	assert.False(t, b.HasMoreElements())
	assert.Nil(t, b.NextElement())
	for range b.Messages() {
		t.Fatal("closed browser yielded a message")
	}
	assert.Zero(t, s.closes.Load(), "nothing was opened")
}

func TestQueueBrowser_QueueFailureGoesToConnection(t *testing.T) {
	s := newFakeSession()
	b := newTestBrowser(t, s)

	_, err := b.Enumeration()
	require.NoError(t, err)

	// break the pull queue underneath the browser
	b.currentConsumer().queue.close()

	assert.Nil(t, b.NextElement())

	errs := s.conn.exceptions()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], IllegalStateError{})

	require.NoError(t, b.Close())
}

func TestQueueBrowser_CustomMarker(t *testing.T) {
	s := newFakeSession()
	s.onRegister = func(_ ConsumerRequest, deliver DeliveryFunc) {
		m := NewMessage()
		m.SetHeader("scan", "complete")
		deliver(NewTextMessage("1"))
		deliver(m)
	}
	b, err := NewQueueBrowser(s, NewQueue(DefaultPrefixes().Queue, "orders"), "",
		WithWaitQuantum(testQuantum), WithBrowseMarker("scan", "complete"))
	require.NoError(t, err)

	var n int
	for range b.Messages() {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestNewQueueBrowser_InvalidDestination(t *testing.T) {
	s := newFakeSession()

	_, err := NewQueueBrowser(s, nil, "")
	assert.ErrorIs(t, err, InvalidDestinationError{})

	_, err = NewQueueBrowser(s, NewTopic(DefaultPrefixes().Topic, "t"), "")
	assert.ErrorIs(t, err, InvalidDestinationError{})
}
