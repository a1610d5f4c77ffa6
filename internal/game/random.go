package game

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// RandomGenerator 随机数来源
type RandomGenerator interface {
	// NextInt 返回 [min, max) 内的均匀整数
	NextInt(min, max int) int
}

// CryptoRandomGenerator 加密安全的随机数生成器
// 结果直接影响余额，不能使用可预测的伪随机数
type CryptoRandomGenerator struct{}

// NewCryptoRandomGenerator 创建加密随机数生成器
func NewCryptoRandomGenerator() *CryptoRandomGenerator {
	return &CryptoRandomGenerator{}
}

// NextInt 生成指定范围内的随机整数
func (g *CryptoRandomGenerator) NextInt(min, max int) int {
	if min >= max {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		panic(fmt.Sprintf("系统随机源不可用: %v", err))
	}
	return min + int(n.Int64())
}

// FixedGenerator 按顺序返回预设值，用于复现对局
// 预设值超出范围时按范围取模，用完后从头循环
type FixedGenerator struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewFixedGenerator 创建固定序列生成器
func NewFixedGenerator(values ...int) *FixedGenerator {
	return &FixedGenerator{values: values}
}

// NextInt 返回下一个预设值
func (g *FixedGenerator) NextInt(min, max int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.values) == 0 || min >= max {
		return min
	}
	v := g.values[g.pos%len(g.values)]
	g.pos++
	if v >= min && v < max {
		return v
	}
	span := max - min
	return min + ((v-min)%span+span)%span
}

// Reset 替换预设序列
func (g *FixedGenerator) Reset(values ...int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = values
	g.pos = 0
}
