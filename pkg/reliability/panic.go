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
	"runtime/debug"
	"sync/atomic"

	"fileHeads/pkg/log"
)

// ErrPanicRecovered 由 PanicMiddleware 在恢复 panic 后返回
var ErrPanicRecovered = errors.New("internal error: panic recovered")

var (
	// PanicCounter 全局 panic 计数器
	PanicCounter int64
	// PanicHandler 全局 panic 处理器
	PanicHandler func(goroutineName string, panicValue interface{}, stack []byte)
)

// HandlePanic 记录一次已恢复的 panic
// 调用方负责 recover()，这里只做计数、日志和回调
func HandlePanic(goroutineName string, r interface{}) {
	atomic.AddInt64(&PanicCounter, 1)

	stack := debug.Stack()

	log.Error("Panic recovered",
		log.Goroutine(goroutineName),
		log.String("panic_value", fmt.Sprintf("%v", r)),
		log.String("stack", string(stack)),
		log.Component("panic-recovery"))

	// 调用自定义处理器（如果有）
	if PanicHandler != nil {
		PanicHandler(goroutineName, r, stack)
	}
}

// RecoverPanic 恢复 panic 的通用函数
// 应在所有 goroutine 开头使用 defer RecoverPanic("goroutine-name")
func RecoverPanic(goroutineName string) {
	if r := recover(); r != nil {
		HandlePanic(goroutineName, r)
	}
}

// SafeGo 安全启动 goroutine，自动恢复 panic
func SafeGo(name string, fn func()) {
	go func() {
		defer RecoverPanic(name)
		fn()
	}()
}

// GetPanicCount 获取 panic 计数
func GetPanicCount() int64 {
	return atomic.LoadInt64(&PanicCounter)
}

// ResetPanicCount 重置 panic 计数
func ResetPanicCount() {
	atomic.StoreInt64(&PanicCounter, 0)
}

// PanicMiddleware 请求处理的 panic 恢复中间件
func PanicMiddleware(name string, handler func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			HandlePanic(name, r)
			err = fmt.Errorf("%w: %v", ErrPanicRecovered, r)
		}
	}()

	err = handler()
	return
}
