package domain

// RateLimitState es el contador persistido por visitante.
// SessionResetAt en epoch millis; 0 significa que no hay ventana activa.
// Timestamps guarda los envios del ultimo minuto, del mas viejo al mas nuevo.
type RateLimitState struct {
	SessionCount   int     `json:"sessionCount"`
	SessionResetAt int64   `json:"sessionResetAt"`
	Timestamps     []int64 `json:"timestamps"`
}

// Clone devuelve una copia que no comparte el slice de timestamps.
func (s RateLimitState) Clone() RateLimitState {
	out := s
	out.Timestamps = append([]int64(nil), s.Timestamps...)
	return out
}
