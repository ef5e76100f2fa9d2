package main

import "time"

// Notice é um slot de mensagem com dispensa automática.
// Cada Set/Clear avança a geração; um timer só limpa o slot se a geração
// para a qual foi armado ainda for a atual. Não é seguro para uso concorrente:
// o SaleComposer protege os slots com o próprio mutex.
type Notice struct {
	message    string
	generation uint64
	timer      *time.Timer
}

// Set troca a mensagem e retorna a nova geração
func (n *Notice) Set(message string) uint64 {
	n.stop()
	n.generation++
	n.message = message
	return n.generation
}

// Clear limpa a mensagem e invalida qualquer timer pendente
func (n *Notice) Clear() {
	n.stop()
	n.generation++
	n.message = ""
}

// Expire limpa a mensagem apenas se gen ainda for a geração atual
func (n *Notice) Expire(gen uint64) bool {
	if gen != n.generation {
		return false
	}
	n.timer = nil
	n.generation++
	n.message = ""
	return true
}

// Arm guarda o timer associado à geração atual para que Set/Clear possam pará-lo
func (n *Notice) Arm(t *time.Timer) {
	n.timer = t
}

func (n *Notice) Message() string {
	return n.message
}

func (n *Notice) Generation() uint64 {
	return n.generation
}

func (n *Notice) stop() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
