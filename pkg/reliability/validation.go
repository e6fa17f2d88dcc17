// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reliability

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"
)

// MaxFileNameBytes 大多数文件系统的单个文件名长度上限（NAME_MAX）
const MaxFileNameBytes = 255

var (
	// ValidationErrorCounter 验证错误计数器
	ValidationErrorCounter int64

	// ErrInvalidKey 键未通过校验
	ErrInvalidKey = errors.New("invalid key")
)

// KeyValidator 外部输入键的校验器
// 存储层本身不做这些检查（超长文件名会以 I/O 错误返回），这里让 API 层提前拒绝
type KeyValidator struct {
	maxKeyBytes int
}

// NewKeyValidator 创建键校验器，maxKeyBytes <= 0 时使用 MaxFileNameBytes
func NewKeyValidator(maxKeyBytes int) *KeyValidator {
	if maxKeyBytes <= 0 {
		maxKeyBytes = MaxFileNameBytes
	}
	return &KeyValidator{maxKeyBytes: maxKeyBytes}
}

// ValidateKey 校验原始键
func (kv *KeyValidator) ValidateKey(key string) error {
	// 键不能为空
	if key == "" {
		return kv.fail("key cannot be empty")
	}

	if !utf8.ValidString(key) {
		return kv.fail("key is not valid UTF-8")
	}

	if len(key) > kv.maxKeyBytes {
		return kv.fail(fmt.Sprintf("key too large: %d bytes (max %d bytes)", len(key), kv.maxKeyBytes))
	}

	return nil
}

func (kv *KeyValidator) fail(msg string) error {
	atomic.AddInt64(&ValidationErrorCounter, 1)
	return fmt.Errorf("%w: %s", ErrInvalidKey, msg)
}

// GetValidationErrorCount 获取验证错误计数
func GetValidationErrorCount() int64 {
	return atomic.LoadInt64(&ValidationErrorCounter)
}

// ResetValidationErrorCount 重置验证错误计数
func ResetValidationErrorCount() {
	atomic.StoreInt64(&ValidationErrorCounter, 0)
}
