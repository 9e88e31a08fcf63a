package wallet

import (
	"crypto/ecdsa"
	"strings"
	"sync"
	"time"

	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Manager 持有金库热钱包私钥，解锁后空闲超时自动上锁
// 上锁时将内存中的私钥标量清零
type Manager struct {
	mu           sync.Mutex
	encryptedKey string
	key          *ecdsa.PrivateKey
	autoLockIn   time.Duration
	lockTimer    *time.Timer
}

func NewManager(encryptedKey string, autoLockMinutes int) *Manager {
	if autoLockMinutes <= 0 {
		autoLockMinutes = 30
	}
	return &Manager{
		encryptedKey: encryptedKey,
		autoLockIn:   time.Duration(autoLockMinutes) * time.Minute,
	}
}

// Unlock 用口令解密私钥并重置自动上锁计时
func (m *Manager) Unlock(passphrase string) error {
	plaintext, err := DecryptKey(m.encryptedKey, passphrase)
	if err != nil {
		return errors.New(errors.ErrWallet, "钱包解锁失败", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(plaintext, "0x"))
	if err != nil {
		return errors.New(errors.ErrWallet, "私钥格式非法", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.key = key
	if m.lockTimer != nil {
		m.lockTimer.Stop()
	}
	m.lockTimer = time.AfterFunc(m.autoLockIn, m.Lock)

	logger.Info("金库钱包已解锁, 地址:", ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

// Lock 上锁并清零私钥内存
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		m.key.D.SetInt64(0)
		m.key = nil
		logger.Info("金库钱包已自动上锁")
	}
	if m.lockTimer != nil {
		m.lockTimer.Stop()
		m.lockTimer = nil
	}
}

// Key 取当前私钥，未解锁时报错；每次取用重置自动上锁计时
func (m *Manager) Key() (*ecdsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key == nil {
		return nil, errors.New(errors.ErrWallet, "钱包未解锁", nil)
	}
	if m.lockTimer != nil {
		m.lockTimer.Reset(m.autoLockIn)
	}
	return m.key, nil
}

func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key != nil
}

// Address 当前解锁钱包的地址
func (m *Manager) Address() (common.Address, error) {
	key, err := m.Key()
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}
