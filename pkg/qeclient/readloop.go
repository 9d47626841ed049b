package qeclient

import "context"

// readLoop — единственный диспетчер входящих кадров сессии. Читает,
// декодирует и раздаёт ответы по id. Битый кадр роняет не сессию,
// а только сам кадр; ответ без ожидающего id молча выбрасывается —
// докладывать некому (вызов уже истёк по таймауту либо id чужой).
func (s *Session) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return // успели отключиться до старта цикла
	}

	defer func() {
		if s.markClosed() {
			s.closeConn()
			s.failPending(ErrNetwork)
			if s.OnDisconnected != nil {
				s.OnDisconnected()
			}
		}
	}()

	// по отмене контекста закрыть сокет, чтобы ReadMessage проснулся;
	// закрытие сессии отпускает горутину и без отмены контекста
	go func() {
		select {
		case <-ctx.Done():
			s.closeConn()
		case <-s.done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.State() != StateClosed && s.OnError != nil {
				s.OnError(err)
			}
			return
		}

		reply, derr := DecodeReply(data)
		if derr != nil {
			s.log.Warn("кадр отброшен", "err", derr)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[reply.ID]
		if ok {
			delete(s.pending, reply.ID)
		}
		s.mu.Unlock()
		if !ok {
			continue // опоздавший или чужой id
		}

		if reply.Err != nil {
			ch <- callOutcome{err: reply.Err}
		} else {
			ch <- callOutcome{result: reply.Result}
		}
	}
}
